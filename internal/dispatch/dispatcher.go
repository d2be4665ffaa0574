package dispatch

import (
	"context"
	"time"

	"github.com/atmx/bank-engine/internal/bank"
	"github.com/atmx/bank-engine/internal/metrics"
	"github.com/atmx/bank-engine/internal/model"
	"github.com/atmx/bank-engine/internal/vip"
)

// persistRetryWindow is how long after the first attempt began a persistent
// operation waits before its single retry. VIP workers use the same window:
// they have no pacing clock of their own, so the fixed window stands in.
const persistRetryWindow = time.Second

// Source yields operation lines for one agent, in order. Next returns
// ok=false once the source is exhausted.
type Source interface {
	Next() (line string, ok bool, err error)
}

// Dispatcher is the executor loop for one agent.
type Dispatcher struct {
	Bank  *bank.Engine
	Queue *vip.Queue
	ID    int
	Pace  time.Duration // per-operation pacing window; 1s in production
}

// Run consumes src until it is exhausted or the agent is administratively
// closed. The closed flag is honored only at agent-safe points: before
// reading a line and after completing a command.
func (d *Dispatcher) Run(src Source) error {
	for {
		if d.Bank.IsAgentClosed(d.ID) {
			return nil
		}
		line, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		cmd, fl, err := ParseLine(line)
		if err == ErrEmptyLine {
			continue
		}
		if err != nil {
			return err
		}

		start := time.Now()
		if fl.VIPPriority > 0 {
			// The raw line goes onto the queue, flags included; the worker
			// strips them again. The agent still pays its pacing window.
			d.Queue.Push(d.ID, fl.VIPPriority, line)
			if cmd.Kind != 'S' {
				sleepUntil(start, d.Pace)
			}
		} else {
			execute(d.Bank, d.ID, cmd, fl, start, d.Pace)
		}

		if d.Bank.IsAgentClosed(d.ID) {
			return nil
		}
	}
}

// ExecuteLine parses and executes one line on behalf of atmID, applying the
// persistence policy and, when pace > 0, the pacing window. Blank lines are
// no-ops.
func ExecuteLine(eng *bank.Engine, atmID int, line string, pace time.Duration) error {
	cmd, fl, err := ParseLine(line)
	if err == ErrEmptyLine {
		return nil
	}
	if err != nil {
		return err
	}
	execute(eng, atmID, cmd, fl, time.Now(), pace)
	return nil
}

// execute runs one parsed command. A persistent first attempt executes with
// errors suppressed; on failure the agent waits out the remainder of the
// retry window and re-executes once with normal logging.
func execute(eng *bank.Engine, atmID int, cmd Command, fl Flags, start time.Time, pace time.Duration) {
	ctx := context.Background()
	if fl.Persistent {
		ctx = bank.WithLogMode(ctx, bank.LogSuccessOnly)
	}
	out := run(ctx, eng, atmID, cmd)
	if fl.Persistent && out != model.OK && cmd.Kind != 'S' {
		sleepUntil(start, persistRetryWindow)
		out = run(context.Background(), eng, atmID, cmd)
	}
	metrics.OperationsTotal.WithLabelValues(string(cmd.Kind), out.String()).Inc()
	if pace > 0 && cmd.Kind != 'S' {
		sleepUntil(start, pace)
	}
}

// run dispatches one command into the engine.
func run(ctx context.Context, eng *bank.Engine, atmID int, c Command) model.Outcome {
	switch c.Kind {
	case 'O':
		return eng.Open(ctx, atmID, c.Account, c.Password, c.InitILS, c.InitUSD)
	case 'D':
		return eng.Deposit(ctx, atmID, c.Account, c.Password, c.Currency, c.Amount)
	case 'W':
		return eng.Withdraw(ctx, atmID, c.Account, c.Password, c.Currency, c.Amount)
	case 'B':
		_, _, rc := eng.Balance(ctx, atmID, c.Account, c.Password)
		return rc
	case 'Q':
		return eng.CloseAccount(ctx, atmID, c.Account, c.Password)
	case 'T':
		return eng.Transfer(ctx, atmID, c.Source, c.Password, c.Dest, c.Currency, c.Amount)
	case 'X':
		return eng.Exchange(ctx, atmID, c.Account, c.Password, c.FromCurrency, c.ToCurrency, c.Amount)
	case 'C':
		return eng.RequestAgentClose(ctx, atmID, c.Target)
	case 'R':
		return eng.Rollback(atmID, c.Iterations)
	case 'I':
		return eng.Invest(ctx, atmID, c.Account, c.Password, c.Amount, c.Currency, c.DurationMS)
	case 'S':
		return eng.ScheduledBreak(atmID, c.DurationMS)
	}
	return model.OK
}

// sleepUntil blocks until d has elapsed since start.
func sleepUntil(start time.Time, d time.Duration) {
	if rem := d - time.Since(start); rem > 0 {
		time.Sleep(rem)
	}
}
