package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for charge creation and webhook
// reconciliation.
type Metrics struct {
	ChargesCreated    *prometheus.CounterVec
	ChargesReused     prometheus.Counter
	GatewayErrors     prometheus.Counter
	WebhookProcessed  *prometheus.CounterVec
	WebhookRejected   prometheus.Counter
	GuestsCleanedUp   prometheus.Counter
}

// New creates and registers all payment metrics.
func New() *Metrics {
	return &Metrics{
		ChargesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agendahub_payment_charges_created_total",
			Help: "Total charges created at the gateway, by method",
		}, []string{"method"}),
		ChargesReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_payment_charges_reused_total",
			Help: "Total charge requests answered with an outstanding unexpired charge",
		}),
		GatewayErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_payment_gateway_errors_total",
			Help: "Total failed charge calls to the payment gateway",
		}),
		WebhookProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agendahub_payment_webhook_processed_total",
			Help: "Total webhook notifications processed, by outcome",
		}, []string{"outcome"}),
		WebhookRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_payment_webhook_rejected_total",
			Help: "Total webhook notifications rejected for a bad signature",
		}),
		GuestsCleanedUp: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_payment_guests_cleaned_up_total",
			Help: "Total guest registrations removed after a failed payment",
		}),
	}
}
