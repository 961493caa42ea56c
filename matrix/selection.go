package matrix

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// UnknownTokenError is returned for a token outside the vocabulary, or for a
// value listed under the wrong axis in a selection file.
type UnknownTokenError struct {
	Token string
	Axis  Axis // axis the token was expected on, empty for CLI tokens
}

func (e *UnknownTokenError) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("unrecognized %s: %q", e.Axis, e.Token)
	}
	return fmt.Sprintf("unrecognized flag: %q", e.Token)
}

// Selection is the user's narrowing of each axis plus the standalone modes.
// An empty axis slice means "use the defaults".
type Selection struct {
	RoundModes []types.RoundMode
	Tininess   []types.Tininess
	Exactness  []types.Exactness
	IntTypes   []IntType
	FloatTypes []FloatType
	FloatOps   []FloatOp

	Level2   bool
	Release  bool
	NoExit   bool
	Stderr   bool
	Coverage bool
	Backend  Backend // empty means native
}

// Parse classifies command line tokens. The first unknown token aborts parsing.
func Parse(tokens []string) (Selection, error) {
	var sel Selection
	for _, tok := range tokens {
		axis, ok := Classify(tok)
		if !ok {
			return Selection{}, &UnknownTokenError{Token: tok}
		}
		sel.add(axis, tok)
	}
	return sel, nil
}

func (s *Selection) add(axis Axis, tok string) {
	switch axis {
	case AxisRoundMode:
		s.RoundModes = append(s.RoundModes, types.RoundMode(tok))
	case AxisTininess:
		s.Tininess = append(s.Tininess, types.Tininess(tok))
	case AxisExactness:
		s.Exactness = append(s.Exactness, types.Exactness(tok))
	case AxisIntType:
		s.IntTypes = append(s.IntTypes, IntType(tok))
	case AxisFloatType:
		s.FloatTypes = append(s.FloatTypes, FloatType(tok))
	case AxisOp:
		s.FloatOps = append(s.FloatOps, FloatOp(tok))
	case AxisMode:
		s.setMode(Mode(tok))
	}
}

func (s *Selection) setMode(m Mode) {
	switch m {
	case ModeLevel2:
		s.Level2 = true
	case ModeRelease:
		s.Release = true
	case ModeNoExit:
		s.NoExit = true
	case ModeStderr:
		s.Stderr = true
	case ModeCoverage:
		s.Coverage = true
	case ModeQEMU:
		s.Backend = BackendEmulated
	case ModeNative:
		s.Backend = BackendNative
	}
}

// EffectiveBackend resolves an unset backend to native.
func (s Selection) EffectiveBackend() Backend {
	if s.Backend == "" {
		return BackendNative
	}
	return s.Backend
}

// Override returns s with every axis that o narrows replaced by o's values.
// Modes set in either are kept; o's backend wins when set.
func (s Selection) Override(o Selection) Selection {
	out := s
	if len(o.RoundModes) > 0 {
		out.RoundModes = o.RoundModes
	}
	if len(o.Tininess) > 0 {
		out.Tininess = o.Tininess
	}
	if len(o.Exactness) > 0 {
		out.Exactness = o.Exactness
	}
	if len(o.IntTypes) > 0 {
		out.IntTypes = o.IntTypes
	}
	if len(o.FloatTypes) > 0 {
		out.FloatTypes = o.FloatTypes
	}
	if len(o.FloatOps) > 0 {
		out.FloatOps = o.FloatOps
	}
	out.Level2 = s.Level2 || o.Level2
	out.Release = s.Release || o.Release
	out.NoExit = s.NoExit || o.NoExit
	out.Stderr = s.Stderr || o.Stderr
	out.Coverage = s.Coverage || o.Coverage
	if o.Backend != "" {
		out.Backend = o.Backend
	}
	return out
}
