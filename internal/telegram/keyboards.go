package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// keyboards собирает inline-клавиатуры. Кнопки со ссылками
// не добавляются, если ссылка не настроена.
type keyboards struct {
	termsURL string
	guideURL string
}

func (k keyboards) mainMenu() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎁 Пробный период (5 дней)", cbTrial)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💳 Оформить подписку", cbSub)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔑 Мой ключ | Подключиться", cbKey)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🫂 Реферальная ссылка", cbRef)),
	}
	var links []tgbotapi.InlineKeyboardButton
	if k.termsURL != "" {
		links = append(links, tgbotapi.NewInlineKeyboardButtonURL("ℹ️ Условия", k.termsURL))
	}
	if k.guideURL != "" {
		links = append(links, tgbotapi.NewInlineKeyboardButtonURL("⚙️ Инструкция", k.guideURL))
	}
	if len(links) > 0 {
		rows = append(rows, links)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// subMenu тарифы в порядке periods, цены в копейках.
func (k keyboards) subMenu(periods []int, prices map[int]int64) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(periods)+1)
	for _, months := range periods {
		label := fmt.Sprintf("%s ‒ %s ₽", monthsLabel(months), formatRubles(prices[months]))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, subPeriodData(months))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbMainMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (k keyboards) backToMain() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ На главную", cbMainMenu)),
	)
}

func (k keyboards) goKey() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🛡️ Подключиться", cbKey)),
	)
}

func (k keyboards) payment(url string, amount int64, handle string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(
			fmt.Sprintf("💳 Оплатить по СБП %s ₽", formatRubles(amount)), url)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Проверить платеж", checkData(handle))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbSub)),
	)
}

func (k keyboards) key() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🤖 Android", cbConnectAndroid),
			tgbotapi.NewInlineKeyboardButtonData("🍏 iOS", cbConnectIOS),
		),
	}
	if k.guideURL != "" {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💻 Windows & macOS", k.guideURL)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("⚙️ Инструкция", k.guideURL)),
		)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbMainMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (k keyboards) device(storeURL, connectURL string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🔗 Скачать приложение", storeURL)),
	}
	if connectURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🛡️ Подключиться", connectURL)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbKey)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// retry экран ошибки: повторить то же действие или вернуться в меню.
func (k keyboards) retry(data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔁 Повторить", data)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ На главную", cbMainMenu)),
	)
}
