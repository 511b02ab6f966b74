package panel

import "github.com/magabrotheeeer/vpn-subscription-bot/internal/models"

const defaultFlow = "xtls-rprx-vision"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type proxySettings struct {
	Flow string `json:"flow,omitempty"`
}

type createUserRequest struct {
	Username string                   `json:"username"`
	Proxies  map[string]proxySettings `json:"proxies"`
	Expire   int64                    `json:"expire"`
	Note     string                   `json:"note,omitempty"`
}

type modifyUserRequest struct {
	Expire int64 `json:"expire"`
}

// userResponse пользователь в формате панели. expire может быть null.
type userResponse struct {
	Username        string `json:"username"`
	Status          string `json:"status"`
	Expire          *int64 `json:"expire"`
	UsedTraffic     int64  `json:"used_traffic"`
	SubscriptionURL string `json:"subscription_url"`
}

type usersResponse struct {
	Users []userResponse `json:"users"`
	Total int            `json:"total"`
}

func (u userResponse) toModel() *models.Entitlement {
	e := &models.Entitlement{
		Username:        u.Username,
		Status:          u.Status,
		UsedTraffic:     u.UsedTraffic,
		SubscriptionURL: u.SubscriptionURL,
	}
	if u.Expire != nil {
		e.Expire = *u.Expire
	}
	return e
}
