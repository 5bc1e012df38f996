package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for conversation flows. A nil
// *BotMetrics is valid and records nothing.
type BotMetrics struct {
	updatesTotal    *prometheus.CounterVec
	bookingPrompts  prometheus.Counter
	bookingsTotal   *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	quizAnswers     *prometheus.CounterVec
	couponsIssued   *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	handlerLatency  *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "updates_total",
			Help:      "Inbound chat updates by kind and classified intent",
		}, []string{"kind", "intent"}),
		bookingPrompts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "prompts_total",
			Help:      "Follow-up prompts sent for incomplete booking drafts",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "finalized_total",
			Help:      "Booking finalization attempts by result",
		}, []string{"result"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "booking",
			Name:      "status_changes_total",
			Help:      "Operator status changes by target status",
		}, []string{"status"}),
		quizAnswers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "quiz",
			Name:      "answers_total",
			Help:      "Quiz answers by outcome",
		}, []string{"outcome"}),
		couponsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "coupon",
			Name:      "issued_total",
			Help:      "Coupons issued by code source",
		}, []string{"source"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "handler_failures_total",
			Help:      "Handler errors and recovered panics",
		}, []string{"kind"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "chat",
			Name:      "handler_latency_seconds",
			Help:      "Latency of update handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.updatesTotal, m.bookingPrompts, m.bookingsTotal, m.statusChanges,
		m.quizAnswers, m.couponsIssued, m.handlerFailures, m.handlerLatency,
	)
	return m
}

func (m *BotMetrics) ObserveUpdate(kind, intent string) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "none"
	}
	m.updatesTotal.WithLabelValues(kind, intent).Inc()
}

func (m *BotMetrics) ObserveBookingPrompt() {
	if m == nil {
		return
	}
	m.bookingPrompts.Inc()
}

func (m *BotMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *BotMetrics) ObserveStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveQuizAnswer(outcome string) {
	if m == nil {
		return
	}
	m.quizAnswers.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveCoupon(fallback bool) {
	if m == nil {
		return
	}
	source := "random"
	if fallback {
		source = "clock"
	}
	m.couponsIssued.WithLabelValues(source).Inc()
}

func (m *BotMetrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(kind).Inc()
}

func (m *BotMetrics) ObserveLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(kind).Observe(seconds)
}
