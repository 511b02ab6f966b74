// Package metrics счётчики Prometheus для активаций, платежей и уведомлений.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

const namespace = "vpnbot"

type Metrics struct {
	activations   *prometheus.CounterVec
	bonuses       *prometheus.CounterVec
	payments      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Subscription activations by reason and result.",
		}, []string{"reason", "result"}),
		bonuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_bonuses_total",
			Help:      "Referral bonuses applied, by party.",
		}, []string{"party"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment operations by stage and result.",
		}, []string{"stage", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outgoing notifications by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.activations, m.bonuses, m.payments, m.notifications)
	return m
}

func (m *Metrics) Activation(reason models.ReasonKind, ok bool) {
	m.activations.WithLabelValues(string(reason), result(ok)).Inc()
}

func (m *Metrics) ReferralBonus(party string) {
	m.bonuses.WithLabelValues(party).Inc()
}

func (m *Metrics) Payment(stage string, ok bool) {
	m.payments.WithLabelValues(stage, result(ok)).Inc()
}

func (m *Metrics) Notification(kind string, ok bool) {
	m.notifications.WithLabelValues(kind, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
