package shopapi

import (
	"strconv"
	"time"

	"gorm.io/gorm"

	"chainshop/internal/session"
)

type User struct {
	Id             uint           `json:"id" gorm:"primarykey"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	Address        string         `gorm:"index" json:"address"`
	Name           string         `json:"name"`
	Email          string         `gorm:"index;not null" json:"email"`
	Hash           string         `gorm:"not null" json:"-"` // password hash, never serialized
	ReferralCode   string         `gorm:"index;not null" json:"referral_code"`
	MembershipTier string         `gorm:"not null;default:bronze" json:"membership_tier"`
	Upline         uint           `json:"upline"` // referrer's user id, 0 when organic
	RefCounter     uint           `json:"ref_counter"`
	Ip             string         `json:"ip"`
	Locale         string         `json:"locale"`
	Referer        string         `json:"referer"`
	Utm            string         `json:"utm"`
}

// UserData is the public profile shape sent to clients and over the ws sync
// channel.
type UserData struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Address        string `json:"wallet"`
	ReferralCode   string `json:"referralCode"`
	MembershipTier string `json:"membershipTier"`
	CreatedAt      string `json:"createdAt"`
}

func (u User) Data() UserData {
	return UserData{
		ID:             u.Id,
		Name:           u.Name,
		Email:          u.Email,
		Address:        u.Address,
		ReferralCode:   u.ReferralCode,
		MembershipTier: u.MembershipTier,
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
}

func (u User) Profile() session.Profile {
	return session.Profile{
		Id:             strconv.FormatUint(uint64(u.Id), 10),
		Name:           u.Name,
		Email:          u.Email,
		Wallet:         u.Address,
		ReferralCode:   u.ReferralCode,
		MembershipTier: u.MembershipTier,
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
}
