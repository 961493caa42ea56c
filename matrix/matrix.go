// Package matrix builds the ordered list of test cases: every mode
// combination crossed with every operation, narrowed by the user's selection.
package matrix

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// Matrix is the realised test matrix. Both lists are deduplicated and in
// traversal order.
type Matrix struct {
	Modes      []types.ModeCombination
	Operations []types.Operation
}

// ordered is the single ordering rule for every axis: the defaults when the
// axis was not narrowed, otherwise the supplied values in the order they were
// first given.
func ordered[T comparable](supplied, defaults []T) []T {
	if len(supplied) == 0 {
		return slices.Clone(defaults)
	}
	return lo.Uniq(supplied)
}

// RoundModes realises the rounding axis. Round-to-odd joins the defaults only
// on the native backend.
func RoundModes(sel Selection) []types.RoundMode {
	defaults := DefaultRoundModes
	if sel.EffectiveBackend() == BackendNative {
		defaults = append(slices.Clone(defaults), types.RoundOdd)
	}
	return ordered(sel.RoundModes, defaults)
}

func Tininesses(sel Selection) []types.Tininess {
	return ordered(sel.Tininess, DefaultTininess)
}

func Exactnesses(sel Selection) []types.Exactness {
	return ordered(sel.Exactness, DefaultExactness)
}

func IntTypes(sel Selection) []IntType {
	return ordered(sel.IntTypes, DefaultIntTypes)
}

func FloatTypes(sel Selection) []FloatType {
	return ordered(sel.FloatTypes, DefaultFloatTypes)
}

func FloatOps(sel Selection) []FloatOp {
	return ordered(sel.FloatOps, DefaultFloatOps)
}

// ModeCombinations is the cartesian product nested round mode, then
// tininess, then exactness.
func ModeCombinations(sel Selection) []types.ModeCombination {
	rounds, tins, exacts := RoundModes(sel), Tininesses(sel), Exactnesses(sel)
	out := make([]types.ModeCombination, 0, len(rounds)*len(tins)*len(exacts))
	for _, r := range rounds {
		for _, t := range tins {
			for _, e := range exacts {
				out = append(out, types.ModeCombination{Round: r, Tininess: t, Exactness: e})
			}
		}
	}
	return lo.Uniq(out)
}

// Conversion names the conversion from one operand type to another.
func Conversion[A, B ~string](from A, to B) types.Operation {
	return types.Operation(fmt.Sprintf("%s_to_%s", from, to))
}

// Qualified names op applied to operands of type f.
func Qualified(f FloatType, op FloatOp) types.Operation {
	return types.Operation(fmt.Sprintf("%s_%s", f, op))
}

// Operations lists conversions first (when selected), then every other
// operation qualified by each float type. A float type is never converted
// to itself.
func Operations(sel Selection) []types.Operation {
	ints, floats, ops := IntTypes(sel), FloatTypes(sel), FloatOps(sel)

	var out []types.Operation
	if slices.Contains(ops, OpConvert) {
		for _, i := range ints {
			for _, f := range floats {
				out = append(out, Conversion(i, f), Conversion(f, i))
			}
		}
		for _, a := range floats {
			for _, b := range floats {
				if a == b {
					continue
				}
				out = append(out, Conversion(a, b))
			}
		}
	}
	for _, op := range ops {
		if op == OpConvert {
			continue
		}
		for _, f := range floats {
			out = append(out, Qualified(f, op))
		}
	}
	return lo.Uniq(out)
}

// Build realises both axes of the matrix. Every axis falls back to its
// defaults when not narrowed, so the result is never empty.
func Build(sel Selection) *Matrix {
	return &Matrix{
		Modes:      ModeCombinations(sel),
		Operations: Operations(sel),
	}
}

// Size is the number of test cases.
func (m *Matrix) Size() int {
	return len(m.Modes) * len(m.Operations)
}

// Cases lists every test case in traversal order: mode combinations outer,
// operations inner.
func (m *Matrix) Cases() []types.TestCase {
	cases := make([]types.TestCase, 0, m.Size())
	for _, mc := range m.Modes {
		for _, op := range m.Operations {
			cases = append(cases, types.TestCase{
				Index:     len(cases) + 1,
				Modes:     mc,
				Operation: op,
			})
		}
	}
	return cases
}
