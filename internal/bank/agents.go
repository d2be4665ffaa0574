package bank

import (
	"context"

	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
)

// RequestAgentClose records a pending close for the target agent. The actual
// transition to the closed state happens inside the status service, which
// also logs it; only validation failures are logged here.
func (e *Engine) RequestAgentClose(ctx context.Context, requestor, target int) model.Outcome {
	e.agentMu.Lock()
	defer e.agentMu.Unlock()
	if target < 1 || target > e.agentCount {
		e.logError(ctx, "Error %d: Your transaction failed – ATM ID %d does not exist", requestor, target)
		return model.ATMNotFound
	}
	if e.agentClosed[target] || e.agentCloseReq[target] != 0 {
		e.logError(ctx, "Error %d: Your close operation failed – ATM ID %d is already in a closed state", requestor, target)
		return model.ATMAlreadyClosed
	}
	e.agentCloseReq[target] = requestor
	return model.OK
}

// IsAgentClosed reports whether the agent has been administratively closed.
// Unknown ids count as closed.
func (e *Engine) IsAgentClosed(id int) bool {
	if id < 1 || id > e.agentCount {
		return true
	}
	e.agentMu.Lock()
	defer e.agentMu.Unlock()
	return e.agentClosed[id]
}

// applyAgentCloses promotes pending close requests to the effective closed
// state and logs each transition. Called once per status iteration, before
// rollbacks, so a restore never reopens a just-closed agent.
func (e *Engine) applyAgentCloses() {
	e.agentMu.Lock()
	defer e.agentMu.Unlock()
	closed := 0
	for target := 1; target <= e.agentCount; target++ {
		if src := e.agentCloseReq[target]; src != 0 && !e.agentClosed[target] {
			e.agentClosed[target] = true
			e.agentCloseReq[target] = 0
			e.logLine("Bank: ATM %d closed %d successfully", src, target)
		}
		if e.agentClosed[target] {
			closed++
		}
	}
	metrics.AgentsClosed.Set(float64(closed))
}
