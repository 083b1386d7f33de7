package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repbaza",
			Name:      "booking_created_total",
			Help:      "Count of booking requests submitted, by type.",
		},
		[]string{"booking_type"},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repbaza",
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over bookings.",
		},
		[]string{"decision"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repbaza",
			Name:      "reminders_sent_total",
			Help:      "Count of reminders sent, by lead window.",
		},
		[]string{"lead"},
	)

	notifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "repbaza",
			Name:      "notify_failures_total",
			Help:      "Count of Telegram messages that failed to send.",
		},
	)

	slotsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "repbaza",
			Name:      "slots_purged_total",
			Help:      "Count of past slots removed by horizon maintenance.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, adminDecision, remindersSent, notifyFailures, slotsPurged)
	})
}

func IncBookingCreated(bookingType string) {
	bookingCreated.WithLabelValues(bookingType).Inc()
}

func IncAdminDecision(decision string) {
	adminDecision.WithLabelValues(decision).Inc()
}

func IncReminderSent(lead string) {
	remindersSent.WithLabelValues(lead).Inc()
}

func IncNotifyFailure() {
	notifyFailures.Inc()
}

func AddSlotsPurged(n int64) {
	slotsPurged.Add(float64(n))
}
