package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/activation"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/referral"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

type testBot struct {
	bot       *Bot
	api       *fakeAPI
	activator *MockActivator
	payments  *MockPayments
	referrals *MockReferrals
}

func newTestBot() testBot {
	api := newFakeAPI()
	tb := testBot{
		api:       api,
		activator: new(MockActivator),
		payments:  new(MockPayments),
		referrals: new(MockReferrals),
	}
	cfg := config.Telegram{
		ActionRate:      100,
		ActionBurst:     100,
		TermsURL:        "https://terms",
		GuideURL:        "https://guide",
		ConnectTemplate: "v2raytun://import/{url}",
	}
	tb.bot = New(api, "arctic_bot", cfg, Deps{
		Activator: tb.activator,
		Payments:  tb.payments,
		Referrals: tb.referrals,
	}, time.UTC, newNoopLogger())
	tb.bot.now = func() time.Time { return testNow }
	return tb
}

func (tb testBot) assert(t *testing.T) {
	tb.activator.AssertExpectations(t)
	tb.payments.AssertExpectations(t)
	tb.referrals.AssertExpectations(t)
}

func callbackQuery(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cq-1",
		From:    &tgbotapi.User{ID: 100, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 100}},
		Data:    data,
	}
}

func startMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 200, UserName: "bob"},
		Chat:      &tgbotapi.Chat{ID: 200},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/start")}},
	}
}

func callbackData(markup *tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func TestBot_HandleCallback(t *testing.T) {
	paidResult := &models.ActivationResult{UserID: "100", Reason: models.PaidPeriod(3), ReferralBonusApplied: true}

	tests := []struct {
		name       string
		data       string
		setupMocks func(tb testBot)
		wantAnswer tgbotapi.CallbackConfig
		wantEdit   string
		wantData   []string
	}{
		{
			name:       "main menu",
			data:       "main_menu",
			setupMocks: func(testBot) {},
			wantEdit:   mainText,
			wantData:   []string{"trial", "sub", "key", "ref"},
		},
		{
			name: "tariff screen",
			data: "sub",
			setupMocks: func(tb testBot) {
				tb.payments.On("Periods").Return([]int{1, 3})
				tb.payments.On("Price", 1).Return(int64(9900), nil)
				tb.payments.On("Price", 3).Return(int64(29900), nil)
			},
			wantEdit: tariffText,
			wantData: []string{"sub_1", "sub_3", "main_menu"},
		},
		{
			name: "period selected creates payment",
			data: "sub_3",
			setupMocks: func(tb testBot) {
				tb.payments.On("Initiate", mock.Anything, "100", 3).Return(&payment.Invoice{
					ConfirmationURL: "https://pay", GatewayHandle: "gw-1", Amount: 29900, Months: 3,
				}, nil)
			},
			wantEdit: paymentText(3),
			wantData: []string{"check_gw-1", "sub"},
		},
		{
			name: "unknown period",
			data: "sub_2",
			setupMocks: func(tb testBot) {
				tb.payments.On("Initiate", mock.Anything, "100", 2).Return(nil, payment.ErrUnknownPeriod)
			},
			wantAnswer: tgbotapi.CallbackConfig{CallbackQueryID: "cq-1", Text: unknownPeriodText, ShowAlert: true},
		},
		{
			name: "payment gateway failure offers retry",
			data: "sub_1",
			setupMocks: func(tb testBot) {
				tb.payments.On("Initiate", mock.Anything, "100", 1).Return(nil, errors.New("gateway down"))
			},
			wantEdit: failureText,
			wantData: []string{"sub_1", "main_menu"},
		},
		{
			name: "payment confirmed",
			data: "check_gw-1",
			setupMocks: func(tb testBot) {
				tb.payments.On("Confirm", mock.Anything, "100", "alice", "gw-1").Return(paidResult, nil)
			},
			wantEdit: "✅ Подписка активирована на 3 мес.\n🎁 +7 бонусных дней от друга!",
			wantData: []string{"key"},
		},
		{
			name: "payment not found",
			data: "check_gw-1",
			setupMocks: func(tb testBot) {
				tb.payments.On("Confirm", mock.Anything, "100", "alice", "gw-1").Return(nil, payment.ErrPaymentNotFound)
			},
			wantAnswer: tgbotapi.CallbackConfig{CallbackQueryID: "cq-1", Text: paymentNotFoundText, ShowAlert: true},
		},
		{
			name: "payment already applied",
			data: "check_gw-1",
			setupMocks: func(tb testBot) {
				tb.payments.On("Confirm", mock.Anything, "100", "alice", "gw-1").Return(nil, payment.ErrPaymentAlreadyApplied)
			},
			wantAnswer: tgbotapi.CallbackConfig{CallbackQueryID: "cq-1", Text: paymentAppliedText, ShowAlert: true},
		},
		{
			name: "trial activated",
			data: "trial",
			setupMocks: func(tb testBot) {
				tb.activator.On("Activate", mock.Anything, "100", "alice", models.Trial()).
					Return(&models.ActivationResult{Reason: models.Trial()}, nil)
			},
			wantEdit: trialActivatedText,
			wantData: []string{"key"},
		},
		{
			name: "trial already used",
			data: "trial",
			setupMocks: func(tb testBot) {
				tb.activator.On("Activate", mock.Anything, "100", "alice", models.Trial()).
					Return(nil, activation.ErrTrialAlreadyUsed)
			},
			wantAnswer: tgbotapi.CallbackConfig{CallbackQueryID: "cq-1", Text: trialUsedText, ShowAlert: true},
		},
		{
			name: "key screen",
			data: "key",
			setupMocks: func(tb testBot) {
				tb.activator.On("Subscription", mock.Anything, "100").Return(&models.Entitlement{
					SubscriptionURL: "https://sub/100",
					Expire:          testNow.Add(5 * 24 * time.Hour).Unix(),
				}, nil)
			},
			wantEdit: "🔑 Ваш ключ: <code>https://sub/100</code>\n\n" +
				"📆 Подписка активна до: 15.01.2025\n" +
				"⏳ Осталось дней: 6\n\n" + chooseDeviceText,
			wantData: []string{"connect_android", "connect_ios", "main_menu"},
		},
		{
			name: "key screen expired",
			data: "key",
			setupMocks: func(tb testBot) {
				tb.activator.On("Subscription", mock.Anything, "100").Return(&models.Entitlement{
					Expire: testNow.Add(-5 * 24 * time.Hour).Unix(),
				}, nil)
			},
			wantEdit: expiredText,
			wantData: []string{"main_menu"},
		},
		{
			name: "key screen without subscription",
			data: "key",
			setupMocks: func(tb testBot) {
				tb.activator.On("Subscription", mock.Anything, "100").Return(nil, activation.ErrNoActiveSubscription)
			},
			wantEdit: noSubscriptionText,
			wantData: []string{"main_menu"},
		},
		{
			name:       "referral link",
			data:       "ref",
			setupMocks: func(testBot) {},
			wantEdit:   referralText(referral.Link("arctic_bot", "100")),
			wantData:   []string{"main_menu"},
		},
		{
			name: "android instructions",
			data: "connect_android",
			setupMocks: func(tb testBot) {
				tb.activator.On("Subscription", mock.Anything, "100").
					Return(&models.Entitlement{SubscriptionURL: "https://sub/100"}, nil)
			},
			wantEdit: connectText("Android", "Google Play"),
			wantData: []string{"key"},
		},
		{
			name:       "unknown callback is acknowledged",
			data:       "trial_5_days",
			setupMocks: func(testBot) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot()
			tt.setupMocks(tb)

			tb.bot.handleCallback(context.Background(), callbackQuery(tt.data))

			answers := tb.api.answers()
			require.Len(t, answers, 1, "callback must be answered exactly once")
			if tt.wantAnswer.CallbackQueryID != "" {
				assert.Equal(t, tt.wantAnswer, answers[0])
			} else {
				assert.False(t, answers[0].ShowAlert)
			}

			edits := tb.api.edits()
			if tt.wantEdit == "" {
				assert.Empty(t, edits)
			} else {
				require.Len(t, edits, 1)
				assert.Equal(t, tt.wantEdit, edits[0].Text)
				assert.Equal(t, "HTML", edits[0].ParseMode)
				assert.Equal(t, 7, edits[0].MessageID)
				require.NotNil(t, edits[0].ReplyMarkup)
				data := callbackData(edits[0].ReplyMarkup)
				for _, d := range tt.wantData {
					assert.Contains(t, data, d)
				}
			}
			tb.assert(t)
		})
	}
}

func TestBot_Start(t *testing.T) {
	payload := referral.EncodePayload("100")

	tests := []struct {
		name         string
		text         string
		setupMocks   func(tb testBot)
		wantMessages []string
	}{
		{
			name:         "plain start",
			text:         "/start",
			setupMocks:   func(testBot) {},
			wantMessages: []string{mainText},
		},
		{
			name: "referral registered",
			text: "/start " + payload,
			setupMocks: func(tb testBot) {
				tb.referrals.On("RegisterReferralIfEligible", mock.Anything, "100", "200").Return(true, nil)
			},
			wantMessages: []string{inviteText, mainText},
		},
		{
			name: "referral not eligible",
			text: "/start " + payload,
			setupMocks: func(tb testBot) {
				tb.referrals.On("RegisterReferralIfEligible", mock.Anything, "100", "200").Return(false, nil)
			},
			wantMessages: []string{mainText},
		},
		{
			name: "referral storage failure still shows menu",
			text: "/start " + payload,
			setupMocks: func(tb testBot) {
				tb.referrals.On("RegisterReferralIfEligible", mock.Anything, "100", "200").Return(false, errors.New("db down"))
			},
			wantMessages: []string{mainText},
		},
		{
			name:         "malformed payload",
			text:         "/start !!!",
			setupMocks:   func(testBot) {},
			wantMessages: []string{mainText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot()
			tt.setupMocks(tb)

			tb.bot.handleMessage(context.Background(), startMessage(tt.text))

			msgs := tb.api.messages()
			require.Len(t, msgs, len(tt.wantMessages))
			for i, want := range tt.wantMessages {
				assert.Equal(t, want, msgs[i].Text)
				assert.Equal(t, int64(200), msgs[i].ChatID)
			}
			tb.assert(t)
		})
	}
}

func TestBot_IgnoresOtherMessages(t *testing.T) {
	tb := newTestBot()
	tb.bot.handleMessage(context.Background(), &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1},
		Text: "hello",
	})
	assert.Empty(t, tb.api.messages())
}

func TestBot_ThrottledCallback(t *testing.T) {
	tb := newTestBot()
	tb.bot.throttle = newThrottle(1, 1)

	tb.bot.handleCallback(context.Background(), callbackQuery("main_menu"))
	tb.bot.handleCallback(context.Background(), callbackQuery("main_menu"))

	answers := tb.api.answers()
	require.Len(t, answers, 2)
	assert.Equal(t, throttledText, answers[1].Text)
	assert.Len(t, tb.api.edits(), 1)
}

func TestBot_EditFallsBackToNewMessage(t *testing.T) {
	tb := newTestBot()
	tb.api.sendErr = errors.New("Bad Request: message to edit not found")

	tb.bot.handleCallback(context.Background(), callbackQuery("main_menu"))

	assert.Len(t, tb.api.edits(), 1)
	msgs := tb.api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, mainText, msgs[0].Text)
}

func TestBot_Run(t *testing.T) {
	tb := newTestBot()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tb.bot.Run(ctx) }()

	tb.api.updates <- tgbotapi.Update{UpdateID: 1, CallbackQuery: callbackQuery("main_menu")}

	require.Eventually(t, func() bool { return len(tb.api.edits()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	tb.api.mu.Lock()
	defer tb.api.mu.Unlock()
	assert.True(t, tb.api.stopped)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", displayName(&tgbotapi.User{UserName: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Alice Liddell", displayName(&tgbotapi.User{FirstName: "Alice", LastName: "Liddell"}))
	assert.Equal(t, "", displayName(nil))
	assert.False(t, strings.HasSuffix(displayName(&tgbotapi.User{FirstName: "Bob"}), " "))
}
