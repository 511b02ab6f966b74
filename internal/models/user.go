// Package models содержит доменные модели бота: пользователей, платежи,
// реферальные записи и подписки на панели.
package models

import "time"

// User представляет пользователя в локальном реестре.
// ExpireAt повторяет срок подписки на панели и может от него отставать.
type User struct {
	ID          string    `json:"id"`           // Идентификатор пользователя в мессенджере
	DisplayName string    `json:"display_name"` // Имя пользователя для заметки на панели
	ExpireAt    time.Time `json:"expire_at"`    // Последний известный срок окончания подписки
	TrialUsed   bool      `json:"trial_used"`   // Пробный период уже активирован
}
