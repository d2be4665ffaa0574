// Package bank implements the concurrent bank engine: the account map, all
// transactional operations, the snapshot ring, and the two background
// services (status capture and commission charging).
//
// Lock hierarchy, top-down: account map lock, then account lock(s) in
// ascending id order, then the bank-money mutex, then the snapshot-ring
// mutex, then the per-subsystem mutexes (agent registry, rollback queue).
// Releases are not strictly bottom-up: lookups release the map lock while
// the account lock(s) they acquired are still held.
package bank

import (
	"context"
	"sync"

	"github.com/atmx/bank-engine/internal/account"
	"github.com/atmx/bank-engine/internal/logger"
	"github.com/atmx/bank-engine/internal/model"
	"github.com/atmx/bank-engine/internal/rwlock"
)

// LogMode controls which outcomes reach the transaction log for the calling
// goroutine. The dispatcher flips this around the first attempt of a
// PERSISTENT operation.
type LogMode int

const (
	// LogAll logs successes and errors. The default.
	LogAll LogMode = iota
	// LogSuccessOnly silently drops error lines.
	LogSuccessOnly
)

type logModeKey struct{}

// WithLogMode returns a context carrying the log mode for engine calls.
func WithLogMode(ctx context.Context, m LogMode) context.Context {
	return context.WithValue(ctx, logModeKey{}, m)
}

func logModeFrom(ctx context.Context) LogMode {
	if m, ok := ctx.Value(logModeKey{}).(LogMode); ok {
		return m
	}
	return LogAll
}

const (
	initialMapCapacity = 128
	snapshotRingSize   = 120
)

// Engine owns all bank state. One value is shared by every thread class;
// there are no ambient globals.
type Engine struct {
	log        *logger.Log
	agentCount int

	accountsLock *rwlock.Lock
	entries      []*account.Account // nil slots are free
	count        int

	moneyMu sync.Mutex
	bankILS int64
	bankUSD int64

	snapMu    sync.Mutex
	snapshots []*model.Snapshot
	snapHead  int
	snapCount int

	rbMu      sync.Mutex
	rollbacks []model.RollbackRequest

	agentMu       sync.Mutex
	agentClosed   []bool // indexed 1..agentCount
	agentCloseReq []int  // 0 = none pending, else requestor id

	// OnStatus, when non-nil, receives a deep copy of every snapshot at the
	// end of the status iteration that published it, after that iteration's
	// agent closes and rollbacks. Set before starting services.
	OnStatus func(model.Snapshot)

	commissionSeed xorshift32 // owned by the commission service goroutine

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates an engine for agentCount agents writing outcome lines to lg.
func New(lg *logger.Log, agentCount int) *Engine {
	return &Engine{
		log:           lg,
		agentCount:    agentCount,
		accountsLock:  rwlock.New(),
		entries:       make([]*account.Account, initialMapCapacity),
		snapshots:     make([]*model.Snapshot, snapshotRingSize),
		agentClosed:   make([]bool, agentCount+1),
		agentCloseReq: make([]int, agentCount+1),
		stop:          make(chan struct{}),
	}
}

// AgentCount returns the configured number of agents.
func (e *Engine) AgentCount() int { return e.agentCount }

// BankFunds returns the bank's commission totals.
func (e *Engine) BankFunds() (ils, usd int64) {
	e.moneyMu.Lock()
	defer e.moneyMu.Unlock()
	return e.bankILS, e.bankUSD
}

// RequestStop signals the background services to exit their next sleep early.
func (e *Engine) RequestStop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Stopping is closed once RequestStop has been called.
func (e *Engine) Stopping() <-chan struct{} { return e.stop }

// findLocked scans for an account by id. Caller holds accountsLock in either
// mode.
func (e *Engine) findLocked(id int) *account.Account {
	for _, acc := range e.entries {
		if acc != nil && acc.ID == id {
			return acc
		}
	}
	return nil
}

// insertAccount adds acc under the map writer lock. Returns false when an
// account with the same id already exists. Grows the entry array by doubling
// when full.
func (e *Engine) insertAccount(acc *account.Account) bool {
	e.accountsLock.Lock()
	defer e.accountsLock.Unlock()

	if e.findLocked(acc.ID) != nil {
		return false
	}
	for i, slot := range e.entries {
		if slot == nil {
			e.entries[i] = acc
			e.count++
			return true
		}
	}
	oldCap := len(e.entries)
	grown := make([]*account.Account, oldCap*2)
	copy(grown, e.entries)
	e.entries = grown
	e.entries[oldCap] = acc
	e.count++
	return true
}

// lockAccount looks the account up under the map reader lock and acquires
// its own lock in the requested mode before the map lock is released, so a
// racing close cannot destroy the account in between.
func (e *Engine) lockAccount(id int, write bool) (*account.Account, model.Outcome) {
	e.accountsLock.RLock()
	acc := e.findLocked(id)
	if acc == nil {
		e.accountsLock.RUnlock()
		return nil, model.AccountNotFound
	}
	if write {
		acc.Lock.Lock()
	} else {
		acc.Lock.RLock()
	}
	e.accountsLock.RUnlock()
	return acc, model.OK
}

func unlockAccount(acc *account.Account, write bool) {
	if acc == nil {
		return
	}
	if write {
		acc.Lock.Unlock()
	} else {
		acc.Lock.RUnlock()
	}
}

// logLine writes an unconditional (success) outcome line.
func (e *Engine) logLine(format string, args ...any) {
	e.log.Line(format, args...)
}

// logError writes an error outcome line unless the caller's log mode
// suppresses it.
func (e *Engine) logError(ctx context.Context, format string, args ...any) {
	if logModeFrom(ctx) == LogSuccessOnly {
		return
	}
	e.log.Line(format, args...)
}
