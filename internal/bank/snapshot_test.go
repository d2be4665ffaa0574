package bank_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/atmx/bank-engine/internal/model"
)

func TestStatusTickRendersSortedStatus(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 20, 8888, 5, 6)
	e.Open(ctx, 1, 10, 7777, 100, 50)

	var out bytes.Buffer
	e.StatusTick(&out)

	s := out.String()
	if !strings.Contains(s, "Current Bank Status") {
		t.Errorf("missing header:\n%s", s)
	}
	line10 := "Account 10: Balance - 100 ILS 50 USD, Account Password - 7777"
	line20 := "Account 20: Balance - 5 ILS 6 USD, Account Password - 8888"
	i10, i20 := strings.Index(s, line10), strings.Index(s, line20)
	if i10 == -1 || i20 == -1 {
		t.Fatalf("missing account lines:\n%s", s)
	}
	if i10 > i20 {
		t.Error("accounts not sorted by id")
	}
	if !strings.Contains(s, "The Bank has 0 ILS and 0 USD") {
		t.Errorf("missing bank totals line:\n%s", s)
	}
}

func TestRollbackRestoresBalancesAndBankTotals(t *testing.T) {
	e, buf := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 10, 7777, 1000, 0)
	e.CommissionTick() // bank gains 10..50 ILS
	bankBefore, _ := e.BankFunds()
	if bankBefore <= 0 {
		t.Fatal("commission tick did not charge")
	}
	balBefore, _ := mustBalance(t, e, 10, 7777)

	e.StatusTick(io.Discard) // snapshot of the state to restore

	e.Withdraw(ctx, 1, 10, 7777, model.ILS, balBefore)
	e.CommissionTick()

	if rc := e.Rollback(2, 1); rc != model.OK {
		t.Fatalf("rollback request: %v", rc)
	}
	// Next tick pushes its own snapshot first, then applies the rollback:
	// "1 iteration ago" resolves to the pre-withdrawal snapshot.
	e.StatusTick(io.Discard)

	ils, usd := mustBalance(t, e, 10, 7777)
	if ils != balBefore || usd != 0 {
		t.Errorf("balance after rollback = (%d,%d), want (%d,0)", ils, usd, balBefore)
	}
	gotILS, gotUSD := e.BankFunds()
	if gotILS != bankBefore || gotUSD != 0 {
		t.Errorf("bank totals after rollback = (%d,%d), want (%d,0)", gotILS, gotUSD, bankBefore)
	}
	if !strings.Contains(buf.String(), "2: Rollback to 1 bank iterations ago was completed successfully") {
		t.Errorf("missing rollback log:\n%s", buf.String())
	}
}

func TestRollbackRestoresClosedAccounts(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 10, 7777, 77, 0)
	e.StatusTick(io.Discard)

	e.CloseAccount(ctx, 1, 10, 7777)
	e.Rollback(1, 1)
	e.StatusTick(io.Discard)

	ils, _, rc := e.Balance(ctx, 1, 10, 7777)
	if rc != model.OK || ils != 77 {
		t.Errorf("closed account not restored: rc=%v ils=%d", rc, ils)
	}
}

func TestRollbackInvalidIterationDroppedSilently(t *testing.T) {
	e, buf := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 10, 7777, 100, 0)
	e.StatusTick(io.Discard)

	before := buf.String()
	if rc := e.Rollback(1, 50); rc != model.OK {
		t.Fatalf("rollback request: %v", rc)
	}
	e.StatusTick(io.Discard) // only 2 snapshots exist; 50 back is invalid

	ils, _ := mustBalance(t, e, 10, 7777)
	if ils != 100 {
		t.Errorf("invalid rollback mutated state: %d", ils)
	}
	if strings.Contains(strings.TrimPrefix(buf.String(), before), "Rollback") {
		t.Errorf("invalid rollback logged:\n%s", buf.String())
	}
}

func TestRollbackRequestBounds(t *testing.T) {
	e, _ := newEngine(t)
	if rc := e.Rollback(1, 0); rc != model.RollbackNotPossible {
		t.Errorf("k=0: %v, want ROLLBACK_NOT_POSSIBLE", rc)
	}
	if rc := e.Rollback(1, 121); rc != model.RollbackNotPossible {
		t.Errorf("k=121: %v, want ROLLBACK_NOT_POSSIBLE", rc)
	}
	if rc := e.Rollback(1, 120); rc != model.OK {
		t.Errorf("k=120: %v, want OK", rc)
	}
}

func TestSnapshotRingWraps(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 10, 7777, 55, 0)
	for i := 0; i < 130; i++ {
		e.StatusTick(io.Discard)
	}

	e.Withdraw(ctx, 1, 10, 7777, model.ILS, 55)
	e.Rollback(1, 119)
	e.StatusTick(io.Discard)

	ils, _ := mustBalance(t, e, 10, 7777)
	if ils != 55 {
		t.Errorf("balance after deep rollback = %d, want 55", ils)
	}
}

func TestAgentCloseLifecycle(t *testing.T) {
	e, buf := newEngine(t)
	ctx := context.Background()

	if rc := e.RequestAgentClose(ctx, 2, 99); rc != model.ATMNotFound {
		t.Errorf("unknown target: %v, want ATM_NOT_FOUND", rc)
	}
	if !strings.Contains(buf.String(), "Error 2: Your transaction failed – ATM ID 99 does not exist") {
		t.Errorf("missing not-found line:\n%s", buf.String())
	}

	if rc := e.RequestAgentClose(ctx, 2, 1); rc != model.OK {
		t.Fatalf("close request: %v", rc)
	}
	if e.IsAgentClosed(1) {
		t.Error("close effective before status tick")
	}
	// A second request while one is pending is rejected.
	if rc := e.RequestAgentClose(ctx, 3, 1); rc != model.ATMAlreadyClosed {
		t.Errorf("pending close: %v, want ATM_ALREADY_CLOSED", rc)
	}

	e.StatusTick(io.Discard)

	if !e.IsAgentClosed(1) {
		t.Error("close not applied by status tick")
	}
	if !strings.Contains(buf.String(), "Bank: ATM 2 closed 1 successfully") {
		t.Errorf("missing close log:\n%s", buf.String())
	}
	if rc := e.RequestAgentClose(ctx, 3, 1); rc != model.ATMAlreadyClosed {
		t.Errorf("already closed: %v, want ATM_ALREADY_CLOSED", rc)
	}
	if !strings.Contains(buf.String(), "Error 3: Your close operation failed – ATM ID 1 is already in a closed state") {
		t.Errorf("missing already-closed line:\n%s", buf.String())
	}
}

func TestRollbackDoesNotReopenClosedAgent(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	e.StatusTick(io.Discard) // snapshot while all agents are open

	e.RequestAgentClose(ctx, 2, 1)
	e.Rollback(3, 1)
	// The tick applies the close first, then the rollback; the restored
	// snapshot must not reopen agent 1.
	e.StatusTick(io.Discard)

	if !e.IsAgentClosed(1) {
		t.Error("rollback reopened a closed agent")
	}
}

func TestCommissionTickChargesIntoBankTotals(t *testing.T) {
	e, buf := newEngine(t)
	ctx := context.Background()

	e.Open(ctx, 1, 10, 7777, 1000, 500)
	e.CommissionTick()

	ils, usd := mustBalance(t, e, 10, 7777)
	bankILS, bankUSD := e.BankFunds()
	if 1000-ils != bankILS || 500-usd != bankUSD {
		t.Errorf("charges and bank totals disagree: account (%d,%d), bank (%d,%d)",
			ils, usd, bankILS, bankUSD)
	}
	// percent in [1,5]: 1000·p/100 = 10p
	if p := bankILS / 10; p < 1 || p > 5 || bankILS%10 != 0 {
		t.Errorf("ILS commission %d outside 1-5%% of 1000", bankILS)
	}
	if !strings.Contains(buf.String(), "were charged, bank gained") {
		t.Errorf("missing commission log:\n%s", buf.String())
	}
}
