package tester

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phaseMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "uiotest",
		Name:      "phase",
		Help:      "Interrupt loop phase (label values are idle, unmasking, waiting, handling, stopped)",
	}, []string{"phase"})

	interruptInterval = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "uiotest",
		Name:      "interrupt_interval_seconds",
		Help:      "Time between two handled interrupts",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 12),
	})
)

// Phase is the current step of the interrupt loop
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUnmasking
	PhaseWaiting
	PhaseHandling
	PhaseStopped
)

var phases = []Phase{PhaseIdle, PhaseUnmasking, PhaseWaiting, PhaseHandling, PhaseStopped}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUnmasking:
		return "unmasking"
	case PhaseWaiting:
		return "waiting"
	case PhaseHandling:
		return "handling"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type testerState struct {
	mutex sync.Mutex

	phase Phase

	// handled and missed count interrupts over the lifetime of the run
	handled uint64
	missed  uint64

	// lastCount is the previous kernel event count, valid once haveBaseline is set
	lastCount    uint32
	haveBaseline bool
	lastSeen     time.Time
}

func NewTesterState() *testerState {
	s := &testerState{}
	s.RegisterPhase(PhaseIdle)
	return s
}

// RegisterPhase records a phase transition
func (s *testerState) RegisterPhase(phase Phase) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.phase = phase

	for _, p := range phases {
		if p == phase {
			phaseMetric.WithLabelValues(p.String()).Set(1)
		} else {
			phaseMetric.WithLabelValues(p.String()).Set(0)
		}
	}
}

// RegisterInterrupt records a handled interrupt with the cumulative event
// count reported by the kernel and returns how many interrupts went by
// unhandled since the previous one. The first count only sets the baseline;
// a count that did not grow (driver rebound, wrap around) resets it.
func (s *testerState) RegisterInterrupt(count uint32, at time.Time) (missed uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.handled++

	if s.haveBaseline && count > s.lastCount {
		missed = count - s.lastCount - 1
	}
	s.missed += uint64(missed)
	s.lastCount = count
	s.haveBaseline = true

	if !s.lastSeen.IsZero() && at.After(s.lastSeen) {
		interruptInterval.Observe(at.Sub(s.lastSeen).Seconds())
	}
	s.lastSeen = at

	return missed
}

func (s *testerState) Phase() Phase {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.phase
}

func (s *testerState) Handled() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.handled
}

func (s *testerState) Missed() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.missed
}
