package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every mailbox collector. The simulator serves it over
// promhttp; tests read it back with testutil.
var Registry = prometheus.NewRegistry()

var (
	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_session_transitions_total",
			Help: "Number of session state transitions published by a side",
		},
		[]string{"side", "from", "to"},
	)

	HiPriMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_hipri_messages_total",
			Help: "Number of hi-pri handshakes completed, by side and role (tx or rx)",
		},
		[]string{"side", "dir"},
	)

	LoPriMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_lopri_messages_total",
			Help: "Number of payloads moved through a lo-pri queue by a side",
		},
		[]string{"side", "queue"},
	)

	QueueFullTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_queue_full_total",
			Help: "Number of pushes refused because the lo-pri queue was full",
		},
		[]string{"queue"},
	)

	FatalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_fatal_errors_total",
			Help: "Number of times a side entered FATAL_ERROR",
		},
		[]string{"side"},
	)
)

func init() {
	Registry.MustRegister(SessionTransitionsTotal)
	Registry.MustRegister(HiPriMessagesTotal)
	Registry.MustRegister(LoPriMessagesTotal)
	Registry.MustRegister(QueueFullTotal)
	Registry.MustRegister(FatalErrorsTotal)
}
