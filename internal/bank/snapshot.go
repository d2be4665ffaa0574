package bank

import (
	"github.com/atmx/bank-engine/internal/account"
	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

// pushSnapshot stores a captured snapshot in the ring, replacing the oldest
// entry once the ring is full.
func (e *Engine) pushSnapshot(snap model.Snapshot) {
	e.snapMu.Lock()
	e.snapshots[e.snapHead] = &snap
	e.snapHead = (e.snapHead + 1) % snapshotRingSize
	if e.snapCount < snapshotRingSize {
		e.snapCount++
	}
	e.snapMu.Unlock()
	metrics.SnapshotsTotal.Inc()
}

// snapshotAt returns a deep copy of the snapshot from iterationsBack status
// iterations ago. The snapshot pushed during the current iteration is
// iteration 0 and cannot be requested; valid requests satisfy
// 0 < iterationsBack < count. The copy lets the caller apply the snapshot
// without holding the ring mutex.
func (e *Engine) snapshotAt(iterationsBack int) (model.Snapshot, bool) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	if iterationsBack <= 0 || iterationsBack >= e.snapCount {
		return model.Snapshot{}, false
	}
	idx := (e.snapHead - 1 - iterationsBack) % snapshotRingSize
	if idx < 0 {
		idx += snapshotRingSize
	}
	src := e.snapshots[idx]
	if src == nil {
		return model.Snapshot{}, false
	}
	return src.Clone(), true
}

// applySnapshot replaces the live account set and the bank commission totals
// with the snapshot's contents. Agent closures are preserved unchanged.
func (e *Engine) applySnapshot(snap model.Snapshot) {
	e.accountsLock.Lock()
	for i := range e.entries {
		e.entries[i] = nil
	}
	e.count = 0
	if len(snap.Entries) > len(e.entries) {
		newCap := len(e.entries)
		for newCap < len(snap.Entries) {
			newCap *= 2
		}
		grown := make([]*account.Account, newCap)
		e.entries = grown
	}
	for i, se := range snap.Entries {
		e.entries[i] = account.New(se.ID, se.Password, se.BalanceILS, se.BalanceUSD)
		e.count++
	}
	e.accountsLock.Unlock()

	e.moneyMu.Lock()
	e.bankILS = snap.BankILS
	e.bankUSD = snap.BankUSD
	e.moneyMu.Unlock()
}

// Rollback enqueues a request to restore the snapshot from iterationsBack
// status iterations ago. The request is validated against the ring bounds
// here and again when applied; application happens inside the status
// service, after that tick's snapshot has been pushed.
func (e *Engine) Rollback(atmID, iterationsBack int) model.Outcome {
	if iterationsBack <= 0 || iterationsBack > snapshotRingSize {
		return model.RollbackNotPossible
	}
	e.rbMu.Lock()
	e.rollbacks = append(e.rollbacks, model.RollbackRequest{ATMID: atmID, IterationsBack: iterationsBack})
	e.rbMu.Unlock()
	return model.OK
}

// processRollbacks drains the rollback queue in FIFO order. Requests whose
// iteration index is outside the currently valid range are dropped silently.
func (e *Engine) processRollbacks() {
	for {
		e.rbMu.Lock()
		if len(e.rollbacks) == 0 {
			e.rbMu.Unlock()
			return
		}
		req := e.rollbacks[0]
		e.rollbacks = e.rollbacks[1:]
		e.rbMu.Unlock()

		snap, ok := e.snapshotAt(req.IterationsBack)
		if !ok {
			continue
		}
		e.applySnapshot(snap)
		metrics.RollbacksApplied.Inc()
		e.logLine("%d: Rollback to %d bank iterations ago was completed successfully",
			req.ATMID, req.IterationsBack)
	}
}
