// Package metrics holds the kernel's process-visible counters: the
// user_pgfault counter the info syscall and the page-fault handler both
// touch, plus a live-process gauge. It wraps prometheus client metrics
// behind a small handle type instead of reaching for the global registry
// everywhere.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Handle is the set of counters the kernel updates and reads back. A single
// Handle is shared by the fault handler, the syscall facade's info handler,
// and process lifecycle bookkeeping.
//
// userPgfault is kept as a plain atomic counter, not just a
// prometheus.Counter, because the info syscall must read the current value
// synchronously; prometheus.Counter exposes no cheap read path outside of a
// registry scrape.
type Handle struct {
	userPgfault uint64

	pgfaultTotal  prometheus.Counter
	liveProcesses prometheus.Gauge
}

// NewHandle creates and registers a fresh set of metrics against reg. Passing
// a prometheus.NewRegistry() per test keeps tests from colliding on the
// default global registry.
func NewHandle(reg prometheus.Registerer) *Handle {
	h := &Handle{
		pgfaultTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minios_user_pgfault_total",
			Help: "Number of page faults taken while executing user code.",
		}),
		liveProcesses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minios_live_processes",
			Help: "Number of processes currently present in the process table.",
		}),
	}

	reg.MustRegister(h.pgfaultTotal, h.liveProcesses)
	return h
}

// IncPgfault records one user page fault.
func (h *Handle) IncPgfault() {
	atomic.AddUint64(&h.userPgfault, 1)
	h.pgfaultTotal.Inc()
}

// NumPgfault returns the current value of the user_pgfault counter for
// synchronous callers such as the info syscall.
func (h *Handle) NumPgfault() uint64 {
	return atomic.LoadUint64(&h.userPgfault)
}

// SetLiveProcesses reports the current size of the process table.
func (h *Handle) SetLiveProcesses(n int) {
	h.liveProcesses.Set(float64(n))
}
