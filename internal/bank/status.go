package bank

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

// RunStatus is the status service loop: every period it captures one
// consistent snapshot, renders the bank status to out, applies queued
// agent-close directives and then queued rollbacks. Returns when the engine
// is stopped.
func (e *Engine) RunStatus(out io.Writer, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
		}
		select {
		case <-e.stop:
			return
		default:
		}
		e.StatusTick(out)
	}
}

// StatusTick runs one status iteration. Exported so callers (and tests) can
// drive the cadence themselves.
func (e *Engine) StatusTick(out io.Writer) {
	snap := e.captureSnapshot()
	e.pushSnapshot(snap)
	e.render(out, snap)

	metrics.AccountsLive.Set(float64(len(snap.Entries)))
	metrics.BankFunds.WithLabelValues("ILS").Set(float64(snap.BankILS))
	metrics.BankFunds.WithLabelValues("USD").Set(float64(snap.BankUSD))

	e.applyAgentCloses()
	e.processRollbacks()

	if e.OnStatus != nil {
		e.OnStatus(snap.Clone())
	}
}

// captureSnapshot builds a consistent view: each account is read under its
// own reader lock while the map reader lock pins the account set. Entries
// are sorted by id; the commission totals are read under their mutex.
func (e *Engine) captureSnapshot() model.Snapshot {
	e.accountsLock.RLock()
	entries := make([]model.SnapshotEntry, 0, e.count)
	for _, acc := range e.entries {
		if acc == nil {
			continue
		}
		acc.Lock.RLock()
		entries = append(entries, model.SnapshotEntry{
			ID:         acc.ID,
			Password:   acc.Password,
			BalanceILS: acc.Balance(model.ILS),
			BalanceUSD: acc.Balance(model.USD),
		})
		acc.Lock.RUnlock()
	}
	e.accountsLock.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	snap := model.Snapshot{Entries: entries, AgentCount: e.agentCount}
	e.moneyMu.Lock()
	snap.BankILS = e.bankILS
	snap.BankUSD = e.bankUSD
	e.moneyMu.Unlock()
	return snap
}

// render clears the screen and prints one line per account plus the bank
// totals. Best-effort: rendering is not ordered with transaction-log output.
func (e *Engine) render(out io.Writer, snap model.Snapshot) {
	fmt.Fprint(out, "\033[2J\033[1;1H")
	fmt.Fprintln(out, "Current Bank Status")
	for _, se := range snap.Entries {
		fmt.Fprintf(out, "Account %d: Balance - %d ILS %d USD, Account Password - %d\n",
			se.ID, se.BalanceILS, se.BalanceUSD, se.Password)
	}
	fmt.Fprintf(out, "The Bank has %d ILS and %d USD\n\n", snap.BankILS, snap.BankUSD)
}
