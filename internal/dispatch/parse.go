// Package dispatch runs the per-agent executor loops: it parses operation
// lines, enforces pacing and the persistence retry policy, routes VIP-flagged
// requests to the priority queue, and hosts the VIP worker loop.
package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atmx/bank-engine/internal/model"
)

// ErrEmptyLine marks a line with no command after flag stripping. Callers
// skip such lines.
var ErrEmptyLine = errors.New("dispatch: empty line")

// Flags are the optional trailing markers on an operation line. Both may
// coexist; they are stripped right-to-left.
type Flags struct {
	Persistent  bool
	VIPPriority int // 0 = not a VIP request, else 1..100
}

// Command is one parsed operation. Only the fields relevant to Kind are set.
type Command struct {
	Kind byte // 'O','D','W','B','Q','T','X','C','R','I','S'

	Account  int
	Password int
	Amount   int64
	Currency model.Currency

	InitILS int64 // O
	InitUSD int64

	Source int // T
	Dest   int

	FromCurrency model.Currency // X
	ToCurrency   model.Currency

	Target     int   // C
	Iterations int   // R
	DurationMS int64 // I, S
}

// stripFlags removes trailing PERSISTENT and VIP=k tokens.
func stripFlags(tok []string) ([]string, Flags, error) {
	var fl Flags
	for len(tok) > 0 {
		last := tok[len(tok)-1]
		if last == "PERSISTENT" {
			fl.Persistent = true
			tok = tok[:len(tok)-1]
			continue
		}
		if rest, ok := strings.CutPrefix(last, "VIP="); ok {
			k, err := strconv.Atoi(rest)
			if err != nil || k < 1 || k > 100 {
				return nil, Flags{}, fmt.Errorf("dispatch: bad VIP priority %q", last)
			}
			fl.VIPPriority = k
			tok = tok[:len(tok)-1]
			continue
		}
		break
	}
	return tok, fl, nil
}

func atoi(tok []string, i int) (int, error) {
	if i >= len(tok) {
		return 0, fmt.Errorf("dispatch: missing operand %d", i)
	}
	n, err := strconv.Atoi(tok[i])
	if err != nil {
		return 0, fmt.Errorf("dispatch: bad integer operand %q", tok[i])
	}
	return n, nil
}

func amount(tok []string, i int) (int64, error) {
	n, err := atoi(tok, i)
	return int64(n), err
}

func currency(tok []string, i int) (model.Currency, error) {
	if i >= len(tok) {
		return model.ILS, fmt.Errorf("dispatch: missing currency operand %d", i)
	}
	return model.ParseCurrency(tok[i])
}

// ParseLine tokenizes one operation line, strips trailing flags, and parses
// the command and operands. Returns ErrEmptyLine for blank lines.
func ParseLine(line string) (Command, Flags, error) {
	tok := strings.Fields(line)
	tok, fl, err := stripFlags(tok)
	if err != nil {
		return Command{}, Flags{}, err
	}
	if len(tok) == 0 {
		return Command{}, Flags{}, ErrEmptyLine
	}

	var c Command
	c.Kind = tok[0][0]
	switch c.Kind {
	case 'O':
		if c.Account, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		if c.Password, err = atoi(tok, 2); err != nil {
			return c, fl, err
		}
		if c.InitILS, err = amount(tok, 3); err != nil {
			return c, fl, err
		}
		c.InitUSD, err = amount(tok, 4)
	case 'D', 'W':
		if c.Account, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		if c.Password, err = atoi(tok, 2); err != nil {
			return c, fl, err
		}
		if c.Amount, err = amount(tok, 3); err != nil {
			return c, fl, err
		}
		c.Currency, err = currency(tok, 4)
	case 'B', 'Q':
		if c.Account, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		c.Password, err = atoi(tok, 2)
	case 'T':
		if c.Source, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		if c.Password, err = atoi(tok, 2); err != nil {
			return c, fl, err
		}
		if c.Dest, err = atoi(tok, 3); err != nil {
			return c, fl, err
		}
		if c.Amount, err = amount(tok, 4); err != nil {
			return c, fl, err
		}
		c.Currency, err = currency(tok, 5)
	case 'X':
		if c.Account, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		if c.Password, err = atoi(tok, 2); err != nil {
			return c, fl, err
		}
		if c.FromCurrency, err = currency(tok, 3); err != nil {
			return c, fl, err
		}
		if len(tok) < 5 || tok[4] != "to" {
			return c, fl, fmt.Errorf("dispatch: exchange expects literal \"to\", got %v", tok)
		}
		if c.ToCurrency, err = currency(tok, 5); err != nil {
			return c, fl, err
		}
		c.Amount, err = amount(tok, 6)
	case 'C':
		c.Target, err = atoi(tok, 1)
	case 'R':
		c.Iterations, err = atoi(tok, 1)
	case 'I':
		if c.Account, err = atoi(tok, 1); err != nil {
			return c, fl, err
		}
		if c.Password, err = atoi(tok, 2); err != nil {
			return c, fl, err
		}
		if c.Amount, err = amount(tok, 3); err != nil {
			return c, fl, err
		}
		if c.Currency, err = currency(tok, 4); err != nil {
			return c, fl, err
		}
		// Both "I ... is <ms>" and "I ... <ms>" are accepted.
		if len(tok) >= 7 && tok[5] == "is" {
			c.DurationMS, err = amount(tok, 6)
		} else {
			c.DurationMS, err = amount(tok, 5)
		}
	case 'S':
		c.DurationMS, err = amount(tok, 1)
	default:
		return c, fl, fmt.Errorf("dispatch: unknown command %q", tok[0])
	}
	return c, fl, err
}
