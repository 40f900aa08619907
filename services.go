package main

import (
	"errors"

	"github.com/goccy/go-json"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GiftStore struct {
	db *gorm.DB
}

func NewGiftStore(db *gorm.DB) *GiftStore {
	return &GiftStore{db: db}
}

// forUpdate adds a row lock where the dialect supports one. SQLite (tests)
// has no row locks; its writes are serialized by the engine itself.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// AuthUser upserts a user by Telegram id. Display fields are only written on
// first creation; an existing row is returned untouched. The second return
// value reports whether this was the user's first authentication.
func (s *GiftStore) AuthUser(tg initdata.User) (User, bool, error) {
	var user User
	attrs := User{
		Username:     optStr(tg.Username),
		FirstName:    optStr(tg.FirstName),
		LastName:     optStr(tg.LastName),
		LanguageCode: optStr(tg.LanguageCode),
	}
	result := s.db.Where(User{TgId: tg.ID}).Attrs(attrs).FirstOrCreate(&user)
	if result.Error != nil {
		return User{}, false, result.Error
	}

	return user, result.RowsAffected > 0, nil
}

// RecordReferral inserts an inviter/invitee pair. The unique index on
// invitee_id makes the first inviter win; a conflicting insert is a no-op.
func (s *GiftStore) RecordReferral(inviterId, inviteeId string) error {
	if inviterId == "" || inviterId == inviteeId {
		return nil
	}

	newRef := Referral{InviterId: inviterId, InviteeId: inviteeId}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invitee_id"}},
		DoNothing: true,
	}).Create(&newRef)

	return result.Error
}

func (s *GiftStore) UserByID(userId string) (User, error) {
	var user User
	result := s.db.Where("id = ?", userId).First(&user)
	if result.Error != nil {
		return User{}, result.Error
	}

	return user, nil
}

// SyncGifts upserts the catalog for one user: gift types by code, holdings by
// (user, gift type). Quantities are overwritten, not merged; last write wins.
func (s *GiftStore) SyncGifts(userId string, catalog []CatalogGift) error {
	if _, err := s.UserByID(userId); err != nil {
		return err
	}

	for _, g := range catalog {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var gt GiftType
			err := tx.Where("code = ?", g.Code).First(&gt).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				gt = GiftType{
					Code:          g.Code,
					Title:         g.Title,
					IconUrl:       g.IconUrl,
					BaseIncomeCpm: g.BaseIncomeCentsPer12h,
					MaxStreak:     defaultMaxStreak,
				}
				if err := tx.Create(&gt).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			} else {
				err = tx.Model(&gt).Updates(map[string]interface{}{
					"title":           g.Title,
					"icon_url":        g.IconUrl,
					"base_income_cpm": g.BaseIncomeCentsPer12h,
				}).Error
				if err != nil {
					return err
				}
			}

			var ug UserGift
			err = tx.Where("user_id = ? AND gift_type_id = ?", userId, gt.Id).First(&ug).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(&UserGift{UserId: userId, GiftTypeId: gt.Id, Quantity: g.Quantity}).Error
			} else if err != nil {
				return err
			}

			return tx.Model(&ug).Update("quantity", g.Quantity).Error
		})
		if err != nil {
			return err
		}
	}

	return nil
}

type giftRow struct {
	UserGiftId    string
	GiftTypeId    string
	Title         string
	Quantity      int64
	LastClaimAtMs int64
	BaseIncomeCpm int64
	MaxStreak     int64
}

// ListGifts projects each holding's claimable amount as of nowMs without
// touching the claim clock. Amounts are advisory; a claim recomputes them
// under lock.
func (s *GiftStore) ListGifts(userId string, nowMs int64) ([]GiftItem, error) {
	var rows []giftRow
	err := s.db.Table("user_gifts").
		Select("user_gifts.id AS user_gift_id, user_gifts.gift_type_id, gift_types.title, user_gifts.quantity, user_gifts.last_claim_at_ms, gift_types.base_income_cpm, gift_types.max_streak").
		Joins("JOIN gift_types ON gift_types.id = user_gifts.gift_type_id").
		Where("user_gifts.user_id = ?", userId).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]GiftItem, 0, len(rows))
	for _, row := range rows {
		bins := claimBins(nowMs, row.LastClaimAtMs, row.MaxStreak)
		items = append(items, GiftItem{
			UserGiftId:     row.UserGiftId,
			GiftTypeId:     row.GiftTypeId,
			Title:          row.Title,
			Quantity:       row.Quantity,
			ClaimableCents: claimableCents(bins, row.Quantity, row.BaseIncomeCpm),
		})
	}

	return items, nil
}

// Claim realizes elapsed buckets for one holding inside a single transaction.
// The holding row is locked for the duration, so two claims on the same
// holding can never both realize the same bucket range.
func (s *GiftStore) Claim(userId, giftTypeId string, nowMs int64) (ClaimResult, error) {
	var out ClaimResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ug UserGift
		if err := forUpdate(tx).Where("user_id = ? AND gift_type_id = ?", userId, giftTypeId).First(&ug).Error; err != nil {
			return err
		}

		var gt GiftType
		if err := tx.Where("id = ?", ug.GiftTypeId).First(&gt).Error; err != nil {
			return err
		}

		bins := claimBins(nowMs, ug.LastClaimAtMs, gt.MaxStreak)
		if bins <= 0 {
			out = ClaimResult{Claimed: false, Gained: 0}
			return nil
		}

		gained := claimableCents(bins, ug.Quantity, gt.BaseIncomeCpm)

		result := tx.Model(&User{}).
			Where("id = ?", userId).
			Update("balance_cents", gorm.Expr("balance_cents + ?", gained))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// Advance the clock by whole buckets from the previous mark so partial
		// progress toward the next bucket is kept. A first-ever claim has no
		// mark to advance from and snaps to now.
		nextClaimAt := ug.LastClaimAtMs + bins*HalfDayMs
		if ug.LastClaimAtMs == 0 {
			nextClaimAt = nowMs
		}
		if err := tx.Model(&ug).Update("last_claim_at_ms", nextClaimAt).Error; err != nil {
			return err
		}

		meta, err := json.Marshal(map[string]interface{}{"giftTypeId": giftTypeId, "bins": bins})
		if err != nil {
			return err
		}
		txn := Txn{UserId: userId, AmountCents: gained, Type: "claim", Meta: string(meta)}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		out = ClaimResult{Claimed: true, Gained: gained}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	return out, nil
}

func (s *GiftStore) UserTransactions(userId string, limit int) ([]Txn, error) {
	txns := make([]Txn, 0)
	err := s.db.Where("user_id = ?", userId).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (s *GiftStore) AllRankings() (Stats, error) {
	var stats Stats

	var users []Rank
	err := s.db.Raw(`
		SELECT
			first_name,
			balance_cents,
			ROW_NUMBER() OVER (ORDER BY balance_cents DESC) AS placement
		FROM users
		ORDER BY balance_cents DESC LIMIT 50
	`).Scan(&users).Error
	if err != nil {
		return Stats{}, err
	}

	var count int64
	err = s.db.Model(&User{}).Count(&count).Error
	if err != nil {
		return Stats{}, err
	}

	stats.All = count
	stats.UserRankings = users

	return stats, nil
}

func (s *GiftStore) UserRank(userId string) (Rank, error) {
	var userRank Rank
	err := s.db.Raw(`
	SELECT u.first_name, u.balance_cents,
			(SELECT COUNT(*) FROM users WHERE balance_cents > (SELECT balance_cents FROM users WHERE id = ?)) + 1 AS placement
		FROM users u
		WHERE u.id = ?;
	`, userId, userId).Scan(&userRank).Error

	return userRank, err
}
