package models

import "time"

// Entitlement запись пользователя на панели управления доступом.
type Entitlement struct {
	Username        string `json:"username"`
	Status          string `json:"status"`
	Expire          int64  `json:"expire"` // unix-секунды, 0 - срок не задан
	UsedTraffic     int64  `json:"used_traffic"`
	SubscriptionURL string `json:"subscription_url"`
}

// ExpireTime возвращает срок окончания как time.Time, нулевое значение если срок не задан.
func (e *Entitlement) ExpireTime() time.Time {
	if e == nil || e.Expire <= 0 {
		return time.Time{}
	}
	return time.Unix(e.Expire, 0)
}
