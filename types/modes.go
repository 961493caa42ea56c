package types

import (
	"strings"
)

// RoundMode is a floating-point rounding direction, spelled the way the
// generator and the consumer expect it on their command lines.
type RoundMode string

const (
	RoundNearEven   RoundMode = "rnear_even"
	RoundMinMag     RoundMode = "rminMag"
	RoundMin        RoundMode = "rmin"
	RoundMax        RoundMode = "rmax"
	RoundNearMaxMag RoundMode = "rnear_maxMag"
	// RoundOdd is only understood by the native generator build.
	RoundOdd RoundMode = "rodd"
)

// Tininess selects whether underflow is detected before or after rounding.
type Tininess string

const (
	TininessBefore Tininess = "tininessbefore"
	TininessAfter  Tininess = "tininessafter"
)

// Exactness selects whether the inexact flag is checked.
type Exactness string

const (
	Exact    Exactness = "exact"
	NotExact Exactness = "notexact"
)

// ModeCombination is one (rounding, tininess, exactness) triple. Both
// processes of a test case receive it verbatim as command line flags.
type ModeCombination struct {
	Round     RoundMode
	Tininess  Tininess
	Exactness Exactness
}

// Tokens returns the three mode names in round, tininess, exactness order.
func (m ModeCombination) Tokens() []string {
	return []string{string(m.Round), string(m.Tininess), string(m.Exactness)}
}

// Flags returns the tokens as command line flags, e.g. -rnear_even.
func (m ModeCombination) Flags() []string {
	tokens := m.Tokens()
	flags := make([]string, len(tokens))
	for i, t := range tokens {
		flags[i] = "-" + t
	}
	return flags
}

func (m ModeCombination) String() string {
	return strings.Join(m.Tokens(), " ")
}

// Operation identifies a generator/consumer function, e.g. f64_add or ui32_to_f32.
type Operation string

// TestCase is the atomic unit of execution.
type TestCase struct {
	Index     int // 1-based position in traversal order
	Modes     ModeCombination
	Operation Operation
}

// Title is the line printed ahead of each case: the operation followed by its modes.
func (tc TestCase) Title() string {
	return string(tc.Operation) + " " + tc.Modes.String()
}

// Key is a filesystem and label friendly identifier for the case.
func (tc TestCase) Key() string {
	return strings.Join(append([]string{string(tc.Operation)}, tc.Modes.Tokens()...), "-")
}
