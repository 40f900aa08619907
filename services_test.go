package main

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// one :memory: database per test; a second pooled connection would get
	// its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, MigrateSchema(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func createTestUser(t *testing.T, store *GiftStore, tgId int64) User {
	t.Helper()

	user, created, err := store.AuthUser(initdata.User{ID: tgId, FirstName: "Andrew", Username: "rogue"})
	require.NoError(t, err)
	require.True(t, created)

	return user
}

func giftTypeByCode(t *testing.T, db *gorm.DB, code string) GiftType {
	t.Helper()

	var gt GiftType
	require.NoError(t, db.Where("code = ?", code).First(&gt).Error)

	return gt
}

func setLastClaimAt(t *testing.T, db *gorm.DB, userId, giftTypeId string, lastMs int64) {
	t.Helper()

	err := db.Model(&UserGift{}).
		Where("user_id = ? AND gift_type_id = ?", userId, giftTypeId).
		Update("last_claim_at_ms", lastMs).Error
	require.NoError(t, err)
}

func TestAuthUserUpsert(t *testing.T) {
	store := NewGiftStore(setupTestDB(t))

	user, created, err := store.AuthUser(initdata.User{ID: 42, FirstName: "Andrew", Username: "rogue"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, user.Id)
	assert.Equal(t, int64(42), user.TgId)
	assert.Equal(t, int64(0), user.BalanceCents)

	// second authentication returns the same row untouched
	again, created, err := store.AuthUser(initdata.User{ID: 42, FirstName: "Changed", Username: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.Id, again.Id)
	assert.Equal(t, "Andrew", *again.FirstName)
}

func TestSyncGiftsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)

	require.NoError(t, store.SyncGifts(user.Id, mockGifts))
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	var typeCount, holdingCount int64
	require.NoError(t, db.Model(&GiftType{}).Count(&typeCount).Error)
	require.NoError(t, db.Model(&UserGift{}).Count(&holdingCount).Error)
	assert.Equal(t, int64(2), typeCount)
	assert.Equal(t, int64(2), holdingCount)

	gt := giftTypeByCode(t, db, "plush_pepe")
	assert.Equal(t, int64(540), gt.BaseIncomeCpm)
	assert.Equal(t, int64(14), gt.MaxStreak)
}

func TestSyncGiftsOverwritesQuantity(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)

	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	updated := []CatalogGift{
		{Code: "plush_pepe", Title: "Plush Pepe", Quantity: 7, BaseIncomeCentsPer12h: 600},
	}
	require.NoError(t, store.SyncGifts(user.Id, updated))

	gt := giftTypeByCode(t, db, "plush_pepe")
	assert.Equal(t, int64(600), gt.BaseIncomeCpm)

	var ug UserGift
	require.NoError(t, db.Where("user_id = ? AND gift_type_id = ?", user.Id, gt.Id).First(&ug).Error)
	assert.Equal(t, int64(7), ug.Quantity)
}

func TestSyncGiftsUnknownUser(t *testing.T) {
	store := NewGiftStore(setupTestDB(t))

	err := store.SyncGifts("nope", mockGifts)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListGiftsProjection(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	base := int64(1_700_000_000_000)
	now := base + 30*60*60*1000 // 30h later, 2 whole buckets

	plush := giftTypeByCode(t, db, "plush_pepe")
	gold := giftTypeByCode(t, db, "gold_coin")
	setLastClaimAt(t, db, user.Id, plush.Id, base)
	setLastClaimAt(t, db, user.Id, gold.Id, base)

	items, err := store.ListGifts(user.Id, now)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byType := map[string]GiftItem{}
	for _, item := range items {
		byType[item.GiftTypeId] = item
	}
	assert.Equal(t, int64(2*3*540), byType[plush.Id].ClaimableCents)
	assert.Equal(t, int64(2*1*1200), byType[gold.Id].ClaimableCents)
	assert.Equal(t, "Plush Pepe", byType[plush.Id].Title)

	// listing is a projection; the clock did not move
	var ug UserGift
	require.NoError(t, db.Where("user_id = ? AND gift_type_id = ?", user.Id, plush.Id).First(&ug).Error)
	assert.Equal(t, base, ug.LastClaimAtMs)
}

func TestClaimRealizesAndAdvancesClock(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	base := int64(1_700_000_000_000)
	now := base + 30*60*60*1000
	plush := giftTypeByCode(t, db, "plush_pepe")
	setLastClaimAt(t, db, user.Id, plush.Id, base)

	out, err := store.Claim(user.Id, plush.Id, now)
	require.NoError(t, err)
	assert.True(t, out.Claimed)
	assert.Equal(t, int64(3240), out.Gained)

	// conservation: balance moved by exactly the gained amount
	after, err := store.UserByID(user.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(3240), after.BalanceCents)

	// exactly one ledger row, matching the gain
	var txns []Txn
	require.NoError(t, db.Where("user_id = ?", user.Id).Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(3240), txns[0].AmountCents)
	assert.Equal(t, "claim", txns[0].Type)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(txns[0].Meta), &meta))
	assert.Equal(t, plush.Id, meta["giftTypeId"])
	assert.Equal(t, float64(2), meta["bins"])

	// clock advanced by whole buckets from the previous mark, not to now
	var ug UserGift
	require.NoError(t, db.Where("user_id = ? AND gift_type_id = ?", user.Id, plush.Id).First(&ug).Error)
	assert.Equal(t, base+2*HalfDayMs, ug.LastClaimAtMs)
}

func TestClaimTwiceSecondIsNoop(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	base := int64(1_700_000_000_000)
	now := base + 13*60*60*1000 // one whole bucket plus an hour
	plush := giftTypeByCode(t, db, "plush_pepe")
	setLastClaimAt(t, db, user.Id, plush.Id, base)

	first, err := store.Claim(user.Id, plush.Id, now)
	require.NoError(t, err)
	assert.True(t, first.Claimed)
	assert.Greater(t, first.Gained, int64(0))

	second, err := store.Claim(user.Id, plush.Id, now)
	require.NoError(t, err)
	assert.False(t, second.Claimed)
	assert.Equal(t, int64(0), second.Gained)

	// the no-op claim left no trace
	after, err := store.UserByID(user.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Gained, after.BalanceCents)

	var txnCount int64
	require.NoError(t, db.Model(&Txn{}).Where("user_id = ?", user.Id).Count(&txnCount).Error)
	assert.Equal(t, int64(1), txnCount)
}

func TestClaimFirstEverSnapsClockToNow(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	now := int64(1_700_000_000_000)
	plush := giftTypeByCode(t, db, "plush_pepe")

	// never claimed: every bucket up to the cap is pending
	out, err := store.Claim(user.Id, plush.Id, now)
	require.NoError(t, err)
	assert.True(t, out.Claimed)
	assert.Equal(t, int64(14*3*540), out.Gained)

	var ug UserGift
	require.NoError(t, db.Where("user_id = ? AND gift_type_id = ?", user.Id, plush.Id).First(&ug).Error)
	assert.Equal(t, now, ug.LastClaimAtMs)
}

func TestConcurrentClaimsRealizeOnce(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	base := int64(1_700_000_000_000)
	now := base + 13*60*60*1000
	plush := giftTypeByCode(t, db, "plush_pepe")
	setLastClaimAt(t, db, user.Id, plush.Id, base)

	const workers = 4
	results := make([]ClaimResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Claim(user.Id, plush.Id, now)
		}(i)
	}
	wg.Wait()

	claimed := 0
	var totalGained int64
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Claimed {
			claimed++
		}
		totalGained += results[i].Gained
	}

	// only one claim realizes the bucket; total matches the serial result
	assert.Equal(t, 1, claimed)
	assert.Equal(t, int64(1*3*540), totalGained)

	after, err := store.UserByID(user.Id)
	require.NoError(t, err)
	assert.Equal(t, totalGained, after.BalanceCents)

	var txnCount int64
	require.NoError(t, db.Model(&Txn{}).Where("user_id = ?", user.Id).Count(&txnCount).Error)
	assert.Equal(t, int64(1), txnCount)
}

func TestClaimUnknownHolding(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)

	_, err := store.Claim(user.Id, "nope", int64(1_700_000_000_000))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordReferralFirstInviterWins(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	invitee := createTestUser(t, store, 42)

	require.NoError(t, store.RecordReferral("inviter-a", invitee.Id))
	require.NoError(t, store.RecordReferral("inviter-b", invitee.Id))

	var refs []Referral
	require.NoError(t, db.Where("invitee_id = ?", invitee.Id).Find(&refs).Error)
	require.Len(t, refs, 1)
	assert.Equal(t, "inviter-a", refs[0].InviterId)
}

func TestRecordReferralSelfIgnored(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)

	require.NoError(t, store.RecordReferral(user.Id, user.Id))

	var count int64
	require.NoError(t, db.Model(&Referral{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestUserTransactionsListsClaims(t *testing.T) {
	db := setupTestDB(t)
	store := NewGiftStore(db)
	user := createTestUser(t, store, 42)
	require.NoError(t, store.SyncGifts(user.Id, mockGifts))

	base := int64(1_700_000_000_000)
	plush := giftTypeByCode(t, db, "plush_pepe")
	gold := giftTypeByCode(t, db, "gold_coin")
	setLastClaimAt(t, db, user.Id, plush.Id, base)
	setLastClaimAt(t, db, user.Id, gold.Id, base)

	now := base + 13*60*60*1000
	_, err := store.Claim(user.Id, plush.Id, now)
	require.NoError(t, err)
	_, err = store.Claim(user.Id, gold.Id, now)
	require.NoError(t, err)

	txns, err := store.UserTransactions(user.Id, 50)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}
