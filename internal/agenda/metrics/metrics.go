package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the registration core.
type Metrics struct {
	RegistrationsCreated  *prometheus.CounterVec
	RegistrationConflicts prometheus.Counter
	EligibilityDenied     prometheus.Counter
	JobSlotRejections     prometheus.Counter
	CheckIns              prometheus.Counter
	CheckInRepeats        prometheus.Counter
	BatchImported         prometheus.Counter
	BatchImportFailed     prometheus.Counter
}

// New creates and registers all registration metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agendahub_registrations_created_total",
			Help: "Total registrations committed, by role",
		}, []string{"role"}),
		RegistrationConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_registration_conflicts_total",
			Help: "Total registration attempts that lost the identity race",
		}),
		EligibilityDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_eligibility_denied_total",
			Help: "Total registration attempts denied by the eligibility rule",
		}),
		JobSlotRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_job_slot_rejections_total",
			Help: "Total committee registrations rejected for a full job slot",
		}),
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_checkins_total",
			Help: "Total successful attendance check-ins",
		}),
		CheckInRepeats: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_checkin_repeats_total",
			Help: "Total re-scans of an already visited registration",
		}),
		BatchImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_batch_imported_total",
			Help: "Total registrations created through bulk import",
		}),
		BatchImportFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agendahub_batch_import_failed_total",
			Help: "Total bulk import items that failed resolution or conflicted",
		}),
	}
}
