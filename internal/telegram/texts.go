package telegram

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

const parseModeHTML = "HTML"

const (
	mainText = "❄️ ArcticVPN - Сервис для бесперебойного доступа в Интернет.\n\n" +
		"⚠️ <b>Перед использованием обязательно прочтите условия использования и инструкцию!</b>"

	tariffText = "<b>Условия тарифа</b>\n" +
		"Регион: Финляндия 🇫🇮\n" +
		"Трафик: Безлимитный\n" +
		"Устройства: до 2 одновременно\n\n" +
		"Выберите срок подписки:"

	inviteText = "🫂 Вы приглашены по реферальной ссылке!\n\n" +
		"🎁 При покупке подписки — 7 бонусных дней бесплатно!"

	trialUsedText       = "❌ Пробный период уже использован."
	paymentNotFoundText = "❌ Оплата не найдена. Попробуйте проверить ещё раз или обратитесь в поддержку."
	paymentAppliedText  = "✅ Этот платёж уже зачтён."
	unknownPeriodText   = "❌ Неизвестный тариф."
	expiredText         = "❌ Ваша подписка истекла."
	noSubscriptionText  = "❌ У вас нет активной подписки."
	failureText         = "⚠️ Что-то пошло не так. Попробуйте ещё раз чуть позже."
	throttledText       = "⏳ Слишком много запросов, подождите немного."

	trialActivatedText = "✅ Пробный период на 5 дней активирован!"
	paidActivatedText  = "✅ Подписка активирована на %d мес."
	bonusSuffix        = "\n🎁 +7 бонусных дней от друга!"

	chooseDeviceText = "📱 Выберите устройство для подключения:"
)

// Ссылки на клиент v2RayTun в магазинах приложений.
const (
	androidStoreURL = "https://play.google.com/store/apps/details?id=com.v2raytun.android&hl=ru"
	iosStoreURL     = "https://apps.apple.com/us/app/v2raytun/id6476628951"
)

func referralText(link string) string {
	return "🎁 Пригласите друга и получите по 7 дней подписки в подарок!\n\n" +
		fmt.Sprintf("🫂 Отправьте другу вашу реферальную ссылку: <code>%s</code>", link)
}

func paymentText(months int) string {
	return fmt.Sprintf("💳 Оплатите подписку на %d мес.\n\nПосле оплаты нажмите кнопку «Проверить платеж»", months)
}

func connectText(device, market string) string {
	return fmt.Sprintf("<b>🌐 Подключение к ArcticVPN на %s</b>\n\n"+
		"1️⃣ Скачайте приложение с %s\n"+
		"2️⃣ Нажмите на кнопку «Подключиться»", device, market)
}

// activationText сообщение об успешной активации.
func activationText(res *models.ActivationResult) string {
	var text string
	if res.Reason.Kind == models.ReasonTrial {
		text = trialActivatedText
	} else {
		text = fmt.Sprintf(paidActivatedText, res.Reason.Months)
	}
	if res.ReferralBonusApplied {
		text += bonusSuffix
	}
	return text
}

// daysLeft округляет остаток вниз до целых суток и добавляет текущий день.
// Отрицательное значение означает, что подписка истекла.
func daysLeft(expire, now time.Time) int {
	return int(math.Floor(expire.Sub(now).Hours()/24)) + 1
}

// keyText экран «Мой ключ». ok=false, если подписка истекла.
func keyText(ent *models.Entitlement, now time.Time, loc *time.Location) (string, bool) {
	expire := ent.ExpireTime()

	var b strings.Builder
	fmt.Fprintf(&b, "🔑 Ваш ключ: <code>%s</code>\n\n", ent.SubscriptionURL)
	if expire.IsZero() {
		b.WriteString("📆 Подписка активна бессрочно\n\n")
	} else {
		left := daysLeft(expire, now)
		if left < 0 {
			return expiredText, false
		}
		fmt.Fprintf(&b, "📆 Подписка активна до: %s\n", expire.In(loc).Format("02.01.2006"))
		fmt.Fprintf(&b, "⏳ Осталось дней: %d\n\n", left)
	}
	b.WriteString(chooseDeviceText)
	return b.String(), true
}

// formatRubles переводит копейки в рубли для подписи кнопок.
func formatRubles(minor int64) string {
	if minor%100 == 0 {
		return fmt.Sprintf("%d", minor/100)
	}
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// monthsLabel «1 месяц», «3 месяца», «6 месяцев».
func monthsLabel(n int) string {
	word := "месяцев"
	switch {
	case n%10 == 1 && n%100 != 11:
		word = "месяц"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		word = "месяца"
	}
	return fmt.Sprintf("%d %s", n, word)
}

func connectURL(template, subscriptionURL string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{url}", subscriptionURL)
}
