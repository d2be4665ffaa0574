package account_test

import (
	"testing"

	"github.com/atmx/bank-engine/internal/account"
	"github.com/atmx/bank-engine/internal/model"
)

func TestAddAndSub(t *testing.T) {
	a := account.New(10, 7777, 100, 50)

	a.Add(model.ILS, 20)
	if got := a.Balance(model.ILS); got != 120 {
		t.Errorf("ILS balance after add = %d, want 120", got)
	}

	if !a.Sub(model.USD, 50) {
		t.Fatal("sub of exact balance should succeed")
	}
	if got := a.Balance(model.USD); got != 0 {
		t.Errorf("USD balance after sub = %d, want 0", got)
	}

	if a.Sub(model.USD, 1) {
		t.Error("sub below balance should fail")
	}
	if got := a.Balance(model.USD); got != 0 {
		t.Errorf("failed sub must not change balance, got %d", got)
	}
}

func TestAddIgnoresNonPositive(t *testing.T) {
	a := account.New(1, 1, 10, 10)
	a.Add(model.ILS, 0)
	a.Add(model.ILS, -5)
	if got := a.Balance(model.ILS); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestCheckPassword(t *testing.T) {
	a := account.New(1, 1234, 0, 0)
	if !a.CheckPassword(1234) {
		t.Error("correct password rejected")
	}
	if a.CheckPassword(4321) {
		t.Error("wrong password accepted")
	}
}
