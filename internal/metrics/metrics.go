// Package metrics provides Prometheus instrumentation for the bank engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts executed operations by command letter and outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_operations_total",
		Help: "Total number of bank operations executed",
	}, []string{"command", "outcome"})

	// AccountsLive tracks the number of open accounts.
	AccountsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bank_accounts_live",
		Help: "Number of currently open accounts",
	})

	// BankFunds tracks the bank's commission totals per currency.
	BankFunds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bank_funds",
		Help: "Bank commission totals",
	}, []string{"currency"})

	// SnapshotsTotal counts snapshots pushed into the ring.
	SnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bank_snapshots_total",
		Help: "Snapshots captured by the status service",
	})

	// RollbacksApplied counts rollback requests that restored a snapshot.
	RollbacksApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bank_rollbacks_applied_total",
		Help: "Rollback requests applied",
	})

	// CommissionCharged accumulates commissions charged per currency.
	CommissionCharged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_commission_charged_total",
		Help: "Cumulative commission charged by the bank",
	}, []string{"currency"})

	// VIPQueueDepth tracks tasks waiting on the priority queue.
	VIPQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bank_vip_queue_depth",
		Help: "Tasks waiting on the VIP priority queue",
	})

	// VIPTasksTotal counts tasks enqueued onto the priority queue.
	VIPTasksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bank_vip_tasks_total",
		Help: "Tasks enqueued onto the VIP priority queue",
	})

	// AgentsClosed tracks agents administratively closed.
	AgentsClosed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bank_agents_closed",
		Help: "Agents in the closed state",
	})

	// WebSocketClients tracks connected status-stream observers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bank_websocket_clients",
		Help: "Number of connected WebSocket status observers",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
