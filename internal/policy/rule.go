package policy

import (
	"errors"
	"fmt"
)

// ErrUnknownRule is returned when a label does not name one of the operating rules.
var ErrUnknownRule = errors.New("unknown operating rule")

// Rule is a named operating rule selected by a policy for a single day.
type Rule uint8

const (
	// RuleNone marks a day on which no policy was evaluated (day 0 of a trace).
	RuleNone Rule = iota
	ReleaseDemand
	Hedge90
	Hedge80
	Hedge70
	Hedge60
	Hedge50
	FloodControl
)

// Rules lists every rule a policy may return.
var Rules = []Rule{ReleaseDemand, Hedge90, Hedge80, Hedge70, Hedge60, Hedge50, FloodControl}

var ruleNames = map[Rule]string{
	RuleNone:      "",
	ReleaseDemand: "Release_Demand",
	Hedge90:       "Hedge_90",
	Hedge80:       "Hedge_80",
	Hedge70:       "Hedge_70",
	Hedge60:       "Hedge_60",
	Hedge50:       "Hedge_50",
	FloodControl:  "Flood_Control",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rule(%d)", uint8(r))
}

// Valid reports whether r is one of the rules a policy may return.
func (r Rule) Valid() bool {
	return r >= ReleaseDemand && r <= FloodControl
}

// HedgeFraction returns the fraction of demand targeted by a hedging rule.
// ReleaseDemand is a hedge of 1.
func (r Rule) HedgeFraction() (float64, bool) {
	switch r {
	case ReleaseDemand:
		return 1, true
	case Hedge90:
		return 0.9, true
	case Hedge80:
		return 0.8, true
	case Hedge70:
		return 0.7, true
	case Hedge60:
		return 0.6, true
	case Hedge50:
		return 0.5, true
	}
	return 0, false
}

// ParseRule parses a rule label. Both the underscored form ("Hedge_60") and the
// compact form ("Hedge60") are accepted.
func ParseRule(s string) (Rule, error) {
	for _, r := range Rules {
		name := r.String()
		if s == name || s == compact(name) {
			return r, nil
		}
	}
	return RuleNone, fmt.Errorf("%w: %q", ErrUnknownRule, s)
}

func compact(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] != '_' {
			out = append(out, name[i])
		}
	}
	return string(out)
}

func (r Rule) MarshalText() ([]byte, error) {
	if r != RuleNone && !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRule, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Rule) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = RuleNone
		return nil
	}
	parsed, err := ParseRule(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
