// Package account holds the per-account state and its lock.
package account

import (
	"github.com/atmx/bank-engine/internal/model"
	"github.com/atmx/bank-engine/internal/rwlock"
)

// Account is one bank account. Balances never go negative. All mutation
// happens with Lock held in writer mode; reads of balances and password
// require at least reader mode. The engine's account map owns insertion
// and removal.
type Account struct {
	ID       int
	Password int

	balanceILS int64
	balanceUSD int64

	Lock *rwlock.Lock
}

// New allocates an account with the given initial balances.
func New(id, password int, initILS, initUSD int64) *Account {
	return &Account{
		ID:         id,
		Password:   password,
		balanceILS: initILS,
		balanceUSD: initUSD,
		Lock:       rwlock.New(),
	}
}

// CheckPassword reports whether pw matches. No locking inside; the caller
// decides the lock strategy.
func (a *Account) CheckPassword(pw int) bool {
	return a.Password == pw
}

// Balance returns the balance of one currency.
func (a *Account) Balance(cur model.Currency) int64 {
	if cur == model.ILS {
		return a.balanceILS
	}
	return a.balanceUSD
}

// Add credits amount to cur. Non-positive amounts are ignored.
func (a *Account) Add(cur model.Currency, amount int64) {
	if amount <= 0 {
		return
	}
	if cur == model.ILS {
		a.balanceILS += amount
	} else {
		a.balanceUSD += amount
	}
}

// Sub debits amount from cur. Returns false, leaving the balance untouched,
// when the balance is lower than amount.
func (a *Account) Sub(cur model.Currency, amount int64) bool {
	if amount <= 0 {
		return true
	}
	if cur == model.ILS {
		if a.balanceILS < amount {
			return false
		}
		a.balanceILS -= amount
		return true
	}
	if a.balanceUSD < amount {
		return false
	}
	a.balanceUSD -= amount
	return true
}
