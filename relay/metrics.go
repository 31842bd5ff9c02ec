package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	relayedBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "pipeline",
		Name:      "relayed_batches_total",
		Help:      "Number of verified message batches accepted by the relay entry point.",
	})
	messagesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "pipeline",
		Name:      "messages_queued_total",
		Help:      "Number of fresh messages dispatched for execution.",
	})
	messagesExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "pipeline",
		Name:      "messages_executed_total",
		Help:      "Number of messages whose execution committed.",
	})
	messagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "pipeline",
		Name:      "messages_failed_total",
		Help:      "Number of message executions whose external call failed.",
	})
	locksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "bridge",
		Name:      "locks_total",
		Help:      "Number of accepted inbound token locks.",
	})
	unlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "bridge",
		Name:      "unlocks_total",
		Help:      "Number of committed outbound token unlocks.",
	})
	burnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "bridge",
		Name:      "native_burns_total",
		Help:      "Number of settled native token burns.",
	})
	stakingOps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "relayhub",
		Subsystem: "appchain",
		Name:      "staking_ops_total",
		Help:      "Number of accepted staking transfers.",
	})
)

var registerMetricsOnce sync.Once

// RegisterMetrics registers the relay collectors. Passing nil uses the
// default registerer. Safe to call more than once.
func RegisterMetrics(reg prometheus.Registerer) {
	registerMetricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			relayedBatches,
			messagesQueued,
			messagesExecuted,
			messagesFailed,
			locksTotal,
			unlocksTotal,
			burnsTotal,
			stakingOps,
		)
	})
}
