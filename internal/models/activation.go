package models

import (
	"fmt"
	"time"
)

const (
	TrialDuration         = 5 * 24 * time.Hour
	DaysPerPaidMonth      = 30
	ReferralBonusDays     = 7
	ReferralBonusDuration = ReferralBonusDays * 24 * time.Hour
)

// ReasonKind тип основания для активации подписки.
type ReasonKind string

const (
	ReasonTrial          ReasonKind = "trial"
	ReasonPaidPeriod     ReasonKind = "paid_period"
	ReasonReferralCredit ReasonKind = "referral_credit"
)

// Reason основание для активации: пробный период, оплаченный срок или реферальный бонус.
type Reason struct {
	Kind   ReasonKind
	Months int
	Days   int
}

func Trial() Reason { return Reason{Kind: ReasonTrial} }

func PaidPeriod(months int) Reason { return Reason{Kind: ReasonPaidPeriod, Months: months} }

func ReferralCredit(days int) Reason { return Reason{Kind: ReasonReferralCredit, Days: days} }

// Duration сколько времени добавляет активация.
// Оплаченный месяц считается как 30 дней.
func (r Reason) Duration() time.Duration {
	switch r.Kind {
	case ReasonTrial:
		return TrialDuration
	case ReasonPaidPeriod:
		return time.Duration(r.Months*DaysPerPaidMonth) * 24 * time.Hour
	case ReasonReferralCredit:
		return time.Duration(r.Days) * 24 * time.Hour
	default:
		return 0
	}
}

// SettlesReferral активации, после которых начисляется реферальный бонус.
// Сам реферальный бонус повторного начисления не вызывает.
func (r Reason) SettlesReferral() bool {
	return r.Kind == ReasonTrial || r.Kind == ReasonPaidPeriod
}

// Validate проверяет, что основание задано корректно.
func (r Reason) Validate() error {
	switch r.Kind {
	case ReasonTrial:
		return nil
	case ReasonPaidPeriod:
		if r.Months <= 0 {
			return fmt.Errorf("paid period must be positive, got %d months", r.Months)
		}
		return nil
	case ReasonReferralCredit:
		if r.Days <= 0 {
			return fmt.Errorf("referral credit must be positive, got %d days", r.Days)
		}
		return nil
	default:
		return fmt.Errorf("unknown activation reason %q", r.Kind)
	}
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonPaidPeriod:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Months)
	case ReasonReferralCredit:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Days)
	default:
		return string(r.Kind)
	}
}

// ActivationResult итог активации для показа пользователю.
type ActivationResult struct {
	UserID               string
	ExpireAt             time.Time
	Reason               Reason
	ReferralBonusApplied bool
	SubscriptionURL      string
}
