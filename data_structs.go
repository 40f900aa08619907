package main

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id           string    `json:"id" gorm:"primaryKey;size:36"`
	TgId         int64     `json:"tg_id" gorm:"uniqueIndex"`
	Username     *string   `json:"username,omitempty"`
	FirstName    *string   `json:"first_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	LanguageCode *string   `json:"language_code,omitempty"`
	BalanceCents int64     `json:"balance_cents" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Id == "" {
		u.Id = uuid.NewString()
	}
	return nil
}

type GiftType struct {
	Id            string `json:"id" gorm:"primaryKey;size:36"`
	Code          string `json:"code" gorm:"uniqueIndex;size:64"`
	Title         string `json:"title"`
	IconUrl       string `json:"icon_url"`
	BaseIncomeCpm int64  `json:"base_income_cpm"`
	MaxStreak     int64  `json:"max_streak"`
}

func (g *GiftType) BeforeCreate(tx *gorm.DB) error {
	if g.Id == "" {
		g.Id = uuid.NewString()
	}
	return nil
}

type UserGift struct {
	Id         string `json:"id" gorm:"primaryKey;size:36"`
	UserId     string `json:"user_id" gorm:"uniqueIndex:idx_user_gift;size:36"`
	GiftTypeId string `json:"gift_type_id" gorm:"uniqueIndex:idx_user_gift;size:36"`
	Quantity   int64  `json:"quantity"`
	// 0 means never claimed
	LastClaimAtMs int64 `json:"last_claim_at_ms"`
}

func (ug *UserGift) BeforeCreate(tx *gorm.DB) error {
	if ug.Id == "" {
		ug.Id = uuid.NewString()
	}
	return nil
}

type Referral struct {
	Id        string    `json:"id" gorm:"primaryKey;size:36"`
	InviterId string    `json:"inviter_id" gorm:"size:36"`
	InviteeId string    `json:"invitee_id" gorm:"uniqueIndex;size:36"`
	CreatedAt time.Time `json:"created_at"`
}

func (ref *Referral) BeforeCreate(tx *gorm.DB) error {
	if ref.Id == "" {
		ref.Id = uuid.NewString()
	}
	return nil
}

type Txn struct {
	Id          string    `json:"id" gorm:"primaryKey;size:36"`
	UserId      string    `json:"user_id" gorm:"index;size:36"`
	AmountCents int64     `json:"amount_cents"`
	Type        string    `json:"type" gorm:"size:32"`
	Meta        string    `json:"meta"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t *Txn) BeforeCreate(tx *gorm.DB) error {
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	return nil
}

type GiftItem struct {
	UserGiftId     string `json:"userGiftId"`
	GiftTypeId     string `json:"giftTypeId"`
	Title          string `json:"title"`
	Quantity       int64  `json:"quantity"`
	ClaimableCents int64  `json:"claimableCents"`
}

type ClaimResult struct {
	Claimed bool  `json:"ok"`
	Gained  int64 `json:"gained"`
}

type Stats struct {
	All          int64  `json:"all"`
	UserRank     Rank   `json:"user_rank"`
	UserRankings []Rank `json:"user_rankings"`
}

type Rank struct {
	FirstName    *string `json:"first_name"`
	Placement    int64   `json:"placement"`
	BalanceCents int64   `json:"balance_cents"`
}

type AuthRequestBody struct {
	InitDataRaw string `json:"initDataRaw"`
	Ref         string `json:"ref,omitempty"`
}

type SyncRequestBody struct {
	UserId string `json:"userId"`
}

type ClaimRequestBody struct {
	UserId     string `json:"userId"`
	GiftTypeId string `json:"giftTypeId"`
}
