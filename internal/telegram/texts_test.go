package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

func TestDaysLeft(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expire time.Time
		want   int
	}{
		{name: "ten days ahead", expire: now.Add(10 * 24 * time.Hour), want: 11},
		{name: "few hours ahead", expire: now.Add(3 * time.Hour), want: 1},
		{name: "expired two hours ago", expire: now.Add(-2 * time.Hour), want: 0},
		{name: "expired two days ago", expire: now.Add(-48 * time.Hour), want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysLeft(tt.expire, now))
		})
	}
}

func TestKeyText(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Moscow")
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	active := &models.Entitlement{
		SubscriptionURL: "https://sub/100",
		Expire:          time.Date(2025, 2, 9, 22, 0, 0, 0, time.UTC).Unix(),
	}
	text, ok := keyText(active, now, loc)
	assert.True(t, ok)
	assert.Equal(t, "🔑 Ваш ключ: <code>https://sub/100</code>\n\n"+
		"📆 Подписка активна до: 10.02.2025\n"+
		"⏳ Осталось дней: 31\n\n"+
		chooseDeviceText, text)

	expired := &models.Entitlement{SubscriptionURL: "u", Expire: now.Add(-72 * time.Hour).Unix()}
	text, ok = keyText(expired, now, loc)
	assert.False(t, ok)
	assert.Equal(t, expiredText, text)

	unlimited := &models.Entitlement{SubscriptionURL: "u"}
	text, ok = keyText(unlimited, now, loc)
	assert.True(t, ok)
	assert.Contains(t, text, "бессрочно")
}

func TestActivationText(t *testing.T) {
	assert.Equal(t, trialActivatedText, activationText(&models.ActivationResult{Reason: models.Trial()}))
	assert.Equal(t, "✅ Подписка активирована на 3 мес.",
		activationText(&models.ActivationResult{Reason: models.PaidPeriod(3)}))
	assert.Equal(t, "✅ Подписка активирована на 1 мес.\n🎁 +7 бонусных дней от друга!",
		activationText(&models.ActivationResult{Reason: models.PaidPeriod(1), ReferralBonusApplied: true}))
}

func TestMonthsLabel(t *testing.T) {
	assert.Equal(t, "1 месяц", monthsLabel(1))
	assert.Equal(t, "3 месяца", monthsLabel(3))
	assert.Equal(t, "6 месяцев", monthsLabel(6))
	assert.Equal(t, "12 месяцев", monthsLabel(12))
	assert.Equal(t, "21 месяц", monthsLabel(21))
}

func TestFormatRubles(t *testing.T) {
	assert.Equal(t, "99", formatRubles(9900))
	assert.Equal(t, "99.50", formatRubles(9950))
	assert.Equal(t, "0.05", formatRubles(5))
}

func TestConnectURL(t *testing.T) {
	assert.Equal(t, "", connectURL("", "https://sub/1"))
	assert.Equal(t, "v2raytun://import/https://sub/1", connectURL("v2raytun://import/{url}", "https://sub/1"))
}

func TestPaymentNotFoundText(t *testing.T) {
	assert.Equal(t, "❌ Оплата не найдена. Попробуйте проверить ещё раз или обратитесь в поддержку.", paymentNotFoundText)
}
