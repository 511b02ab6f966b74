package models

import "time"

// Referral связь пригласившего и приглашённого пользователя.
// Used переходит в true ровно один раз, при первой активации приглашённого.
type Referral struct {
	ReferrerID string     `json:"referrer_id"`
	ReferralID string     `json:"referral_id"`
	Used       bool       `json:"used"`
	CreatedAt  time.Time  `json:"created_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

// OwedCredit реферальное начисление, которое не удалось выдать сразу.
type OwedCredit struct {
	UserID     string `json:"user_id"`
	Days       int    `json:"days"`
	ReferralID string `json:"referral_id"`
}
