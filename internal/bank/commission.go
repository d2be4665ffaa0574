package bank

import (
	"time"

	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

// xorshift32 is the commission PRNG. Not cryptographic; uniform independence
// across threads and accounts is not required.
type xorshift32 uint32

func (s *xorshift32) next() uint32 {
	x := uint32(*s)
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	*s = xorshift32(x)
	return x
}

// RunCommission is the commission service loop: every period it charges each
// account a random 1–5% of each currency balance and moves the charge to the
// bank totals. Returns when the engine is stopped.
func (e *Engine) RunCommission(period time.Duration) {
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
		e.CommissionTick()
	}
}

// CommissionTick charges one round of commissions. Only the commission
// service goroutine (or a test standing in for it) may call this.
func (e *Engine) CommissionTick() {
	if e.commissionSeed == 0 {
		e.commissionSeed = xorshift32(time.Now().UnixNano())
		if e.commissionSeed == 0 {
			e.commissionSeed = 1
		}
	}
	e.accountsLock.RLock()
	defer e.accountsLock.RUnlock()
	for _, acc := range e.entries {
		if acc == nil {
			continue
		}
		percent := int64(e.commissionSeed.next()%5) + 1

		acc.Lock.Lock()
		comILS := acc.Balance(model.ILS) * percent / 100
		comUSD := acc.Balance(model.USD) * percent / 100
		if comILS > 0 {
			acc.Sub(model.ILS, comILS)
		}
		if comUSD > 0 {
			acc.Sub(model.USD, comUSD)
		}
		accID := acc.ID
		acc.Lock.Unlock()

		e.moneyMu.Lock()
		e.bankILS += comILS
		e.bankUSD += comUSD
		e.moneyMu.Unlock()

		metrics.CommissionCharged.WithLabelValues("ILS").Add(float64(comILS))
		metrics.CommissionCharged.WithLabelValues("USD").Add(float64(comUSD))
		e.logLine("Bank: commissions of %d %% were charged, bank gained %d ILS and %d USD from account %d",
			percent, comILS, comUSD, accID)
	}
}
