package bank

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/bank-engine/internal/account"
	"github.com/atmx/bank-engine/internal/model"
)

// Open creates an account with the given initial balances. Duplicate ids
// leave the map unchanged.
func (e *Engine) Open(ctx context.Context, atmID, accID, password int, initILS, initUSD int64) model.Outcome {
	if initILS < 0 || initUSD < 0 {
		return model.IllegalAmount
	}
	acc := account.New(accID, password, initILS, initUSD)
	if !e.insertAccount(acc) {
		e.logError(ctx, "Error %d: Your transaction failed – account with the same id exists", atmID)
		return model.AccountExists
	}
	e.logLine("%d: New account id is %d with password %d and initial balance %d ILS and %d USD",
		atmID, accID, password, initILS, initUSD)
	return model.OK
}

// Deposit credits amount of cur to the account.
func (e *Engine) Deposit(ctx context.Context, atmID, accID, password int, cur model.Currency, amount int64) model.Outcome {
	if amount <= 0 {
		return model.IllegalAmount
	}
	acc, rc := e.lockAccount(accID, true)
	if rc != model.OK {
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, accID)
		return rc
	}
	if !acc.CheckPassword(password) {
		unlockAccount(acc, true)
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, accID)
		return model.BadPassword
	}
	acc.Add(cur, amount)
	ils, usd := acc.Balance(model.ILS), acc.Balance(model.USD)
	unlockAccount(acc, true)
	e.logLine("%d: Account %d new balance is %d ILS and %d USD after %d %s was deposited",
		atmID, accID, ils, usd, amount, cur)
	return model.OK
}

// Withdraw debits amount of cur from the account, failing when the
// per-currency balance is below amount.
func (e *Engine) Withdraw(ctx context.Context, atmID, accID, password int, cur model.Currency, amount int64) model.Outcome {
	if amount <= 0 {
		return model.IllegalAmount
	}
	acc, rc := e.lockAccount(accID, true)
	if rc != model.OK {
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, accID)
		return rc
	}
	if !acc.CheckPassword(password) {
		unlockAccount(acc, true)
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, accID)
		return model.BadPassword
	}
	ok := acc.Sub(cur, amount)
	ils, usd := acc.Balance(model.ILS), acc.Balance(model.USD)
	unlockAccount(acc, true)
	if !ok {
		e.logError(ctx, "Error %d: Your transaction failed – account id %d balance is %d ILS and %d USD is lower than %d %s",
			atmID, accID, ils, usd, amount, cur)
		return model.InsufficientFunds
	}
	e.logLine("%d: Account %d new balance is %d ILS and %d USD after %d %s was withdrawn",
		atmID, accID, ils, usd, amount, cur)
	return model.OK
}

// Balance reads both balances under the account's reader lock.
func (e *Engine) Balance(ctx context.Context, atmID, accID, password int) (ils, usd int64, rc model.Outcome) {
	acc, rc := e.lockAccount(accID, false)
	if rc != model.OK {
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, accID)
		return 0, 0, rc
	}
	if !acc.CheckPassword(password) {
		unlockAccount(acc, false)
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, accID)
		return 0, 0, model.BadPassword
	}
	ils, usd = acc.Balance(model.ILS), acc.Balance(model.USD)
	unlockAccount(acc, false)
	e.logLine("%d: Account %d balance is %d ILS and %d USD", atmID, accID, ils, usd)
	return ils, usd, model.OK
}

// CloseAccount removes the account from the map. The map writer lock is held
// across lookup and removal so no other operation can find the account while
// it is being closed.
func (e *Engine) CloseAccount(ctx context.Context, atmID, accID, password int) model.Outcome {
	e.accountsLock.Lock()
	idx := -1
	for i, acc := range e.entries {
		if acc != nil && acc.ID == accID {
			idx = i
			break
		}
	}
	if idx == -1 {
		e.accountsLock.Unlock()
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, accID)
		return model.AccountNotFound
	}
	acc := e.entries[idx]
	acc.Lock.Lock()
	if !acc.CheckPassword(password) {
		acc.Lock.Unlock()
		e.accountsLock.Unlock()
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, accID)
		return model.BadPassword
	}
	ils, usd := acc.Balance(model.ILS), acc.Balance(model.USD)
	e.entries[idx] = nil
	e.count--
	e.accountsLock.Unlock()
	acc.Lock.Unlock()
	e.logLine("%d: Account %d is now closed. Balance was %d ILS and %d USD", atmID, accID, ils, usd)
	return model.OK
}

// Transfer moves amount of cur from srcID to dstID. Both account writer
// locks are taken in ascending id order while the map reader lock is still
// held, so the pair of mutations is atomic and deadlock-free.
func (e *Engine) Transfer(ctx context.Context, atmID, srcID, password, dstID int, cur model.Currency, amount int64) model.Outcome {
	if amount <= 0 {
		return model.IllegalAmount
	}
	if srcID == dstID {
		return model.SameAccount
	}
	e.accountsLock.RLock()
	src := e.findLocked(srcID)
	dst := e.findLocked(dstID)
	if src == nil {
		e.accountsLock.RUnlock()
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, srcID)
		return model.AccountNotFound
	}
	if dst == nil {
		e.accountsLock.RUnlock()
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, dstID)
		return model.AccountNotFound
	}
	first, second := src, dst
	if dstID < srcID {
		first, second = dst, src
	}
	first.Lock.Lock()
	second.Lock.Lock()
	e.accountsLock.RUnlock()

	if !src.CheckPassword(password) {
		second.Lock.Unlock()
		first.Lock.Unlock()
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, srcID)
		return model.BadPassword
	}
	if !src.Sub(cur, amount) {
		second.Lock.Unlock()
		first.Lock.Unlock()
		e.logError(ctx, "Error %d: Your transaction failed – balance of account id %d is lower than %d %s",
			atmID, srcID, amount, cur)
		return model.InsufficientFunds
	}
	dst.Add(cur, amount)
	srcILS, srcUSD := src.Balance(model.ILS), src.Balance(model.USD)
	dstILS, dstUSD := dst.Balance(model.ILS), dst.Balance(model.USD)
	second.Lock.Unlock()
	first.Lock.Unlock()
	e.logLine("%d: Transfer %d %s from account %d to account %d new account balance is %d ILS and %d USD new target account balance is %d ILS and %d USD",
		atmID, amount, cur, srcID, dstID, srcILS, srcUSD, dstILS, dstUSD)
	return model.OK
}

// Exchange converts amountFrom of fromCur into toCur at the fixed rate,
// truncating toward zero on ILS→USD. Converting a currency to itself is a
// no-op.
func (e *Engine) Exchange(ctx context.Context, atmID, accID, password int, fromCur, toCur model.Currency, amountFrom int64) model.Outcome {
	if amountFrom <= 0 {
		return model.IllegalAmount
	}
	if fromCur == toCur {
		return model.OK
	}
	acc, rc := e.lockAccount(accID, true)
	if rc != model.OK {
		e.logError(ctx, "Error %d: Your transaction failed – account id %d does not exist", atmID, accID)
		return rc
	}
	if !acc.CheckPassword(password) {
		unlockAccount(acc, true)
		e.logError(ctx, "Error %d: Your transaction failed – password for account id %d is incorrect", atmID, accID)
		return model.BadPassword
	}
	ils, usd := acc.Balance(model.ILS), acc.Balance(model.USD)
	if !acc.Sub(fromCur, amountFrom) {
		unlockAccount(acc, true)
		e.logError(ctx, "Error %d: Your transaction failed – account id %d balance is %d ILS and %d USD is lower than %d %s",
			atmID, accID, ils, usd, amountFrom, fromCur)
		return model.InsufficientFunds
	}
	amountTo := amountFrom
	if fromCur == model.USD {
		amountTo = amountFrom * model.ExchangeRate
	} else {
		amountTo = amountFrom / model.ExchangeRate
	}
	acc.Add(toCur, amountTo)
	ils, usd = acc.Balance(model.ILS), acc.Balance(model.USD)
	unlockAccount(acc, true)
	e.logLine("%d: Account %d new balance is %d ILS and %d USD after %d %s was exchanged",
		atmID, accID, ils, usd, amountFrom, fromCur)
	return model.OK
}

const investStepMS = 10

// growthRate is the per-step interest factor for investments.
var growthRate = decimal.RequireFromString("1.03")

// growthStepsLimit bounds the exact-decimal power computation: even a single
// unit invested for this many steps exceeds the int64 range, so anything
// beyond saturates directly.
const growthStepsLimit = 1478

var maxProceeds = decimal.NewFromInt(math.MaxInt64)

// investProceeds computes floor(amount · 1.03^steps) in exact decimal
// arithmetic, saturating to the int64 range.
func investProceeds(amount, steps int64) int64 {
	if steps > growthStepsLimit {
		return math.MaxInt64
	}
	final := decimal.NewFromInt(amount).Mul(growthRate.Pow(decimal.NewFromInt(steps))).Floor()
	if final.Sign() < 0 {
		return 0
	}
	if final.GreaterThanOrEqual(maxProceeds) {
		return math.MaxInt64
	}
	return final.IntPart()
}

// Invest debits amount, suspends the calling worker for durationMS without
// holding the account lock, then credits the grown proceeds — unless the
// account was closed in the meantime, in which case the proceeds are
// discarded silently. Investments produce no transaction-log lines.
func (e *Engine) Invest(ctx context.Context, atmID, accID, password int, amount int64, cur model.Currency, durationMS int64) model.Outcome {
	if amount <= 0 || durationMS <= 0 || durationMS%investStepMS != 0 {
		return model.IllegalAmount
	}
	acc, rc := e.lockAccount(accID, true)
	if rc != model.OK {
		return rc
	}
	if !acc.CheckPassword(password) {
		unlockAccount(acc, true)
		return model.BadPassword
	}
	if !acc.Sub(cur, amount) {
		unlockAccount(acc, true)
		return model.InsufficientFunds
	}
	unlockAccount(acc, true)

	proceeds := investProceeds(amount, durationMS/investStepMS)
	time.Sleep(time.Duration(durationMS) * time.Millisecond)

	if acc2, rc2 := e.lockAccount(accID, true); rc2 == model.OK {
		acc2.Add(cur, proceeds)
		unlockAccount(acc2, true)
	}
	return model.OK
}

// ScheduledBreak logs the break notice and suspends the calling agent.
// Breaks do not count against persistence and carry no pacing of their own.
func (e *Engine) ScheduledBreak(atmID int, durationMS int64) model.Outcome {
	e.logLine("%d: Currently on a scheduled break. Service will resume within %d ms.", atmID, durationMS)
	if durationMS > 0 {
		time.Sleep(time.Duration(durationMS) * time.Millisecond)
	}
	return model.OK
}
