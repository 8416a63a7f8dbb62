package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder backed by Prometheus collectors. Collectors
// are registered lazily on first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	maintainDuration    prometheus.Histogram
	assignmentsCreated  *prometheus.CounterVec
	assignmentsRetract  *prometheus.CounterVec
	slotsUnplanned      *prometheus.CounterVec
	integrityViolations prometheus.Counter
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a Recorder registering with reg
// (prometheus.DefaultRegisterer if nil) under namespace ("chore_planner" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "chore_planner"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.maintainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "plan",
			Name:      "maintain_duration_seconds",
			Help:      "Duration of maintain passes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		})
		p.assignmentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "plan",
			Name:      "assignments_created_total",
			Help:      "Total assignments created by chore.",
		}, []string{"chore"})
		p.assignmentsRetract = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "plan",
			Name:      "assignments_retracted_total",
			Help:      "Total future assignments retracted by chore.",
		}, []string{"chore"})
		p.slotsUnplanned = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "plan",
			Name:      "slots_unplanned_total",
			Help:      "Total slots left unplanned because nobody was eligible, by chore.",
		}, []string{"chore"})
		p.integrityViolations = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "store",
			Name:      "integrity_violations_total",
			Help:      "Total mutations rolled back by the integrity check.",
		})

		p.reg.MustRegister(p.maintainDuration)
		p.reg.MustRegister(p.assignmentsCreated)
		p.reg.MustRegister(p.assignmentsRetract)
		p.reg.MustRegister(p.slotsUnplanned)
		p.reg.MustRegister(p.integrityViolations)
	})
}

func (p *Prometheus) ObserveMaintain(d time.Duration) {
	p.ensureRegistered()
	p.maintainDuration.Observe(d.Seconds())
}

func (p *Prometheus) AssignmentCreated(chore string) {
	p.ensureRegistered()
	p.assignmentsCreated.WithLabelValues(chore).Inc()
}

func (p *Prometheus) AssignmentRetracted(chore string) {
	p.ensureRegistered()
	p.assignmentsRetract.WithLabelValues(chore).Inc()
}

func (p *Prometheus) SlotUnplanned(chore string) {
	p.ensureRegistered()
	p.slotsUnplanned.WithLabelValues(chore).Inc()
}

func (p *Prometheus) IntegrityViolation() {
	p.ensureRegistered()
	p.integrityViolations.Inc()
}
