package matrix

import (
	"github.com/ethereum-optimism/infra/op-testfloat/types"
)

// IntType is an integer operand width.
type IntType string

const (
	UI32 IntType = "ui32"
	UI64 IntType = "ui64"
	I32  IntType = "i32"
	I64  IntType = "i64"
)

// FloatType is a floating-point operand width.
type FloatType string

const (
	F32 FloatType = "f32"
	F64 FloatType = "f64"
)

// FloatOp is an operation name before it is qualified with operand types.
type FloatOp string

// OpConvert expands into every conversion between the selected types.
const OpConvert FloatOp = "to"

// Mode is a standalone token that changes how cases are run rather than
// which cases exist.
type Mode string

const (
	ModeLevel2   Mode = "level2"   // extended generator coverage
	ModeRelease  Mode = "release"  // optimized consumer build
	ModeNoExit   Mode = "noexit"   // consumer keeps going past a mismatch
	ModeStderr   Mode = "stderr"   // show generator diagnostics
	ModeCoverage Mode = "coverage" // wrap the consumer in llvm-cov
	ModeQEMU     Mode = "qemu"     // emulated backend
	ModeNative   Mode = "native"   // native backend
)

// Backend is where the generator runs. Only the native build knows round-to-odd.
type Backend string

const (
	BackendNative   Backend = "native"
	BackendEmulated Backend = "emulated"
)

// Axis names the vocabulary a token belongs to.
type Axis string

const (
	AxisRoundMode Axis = "round mode"
	AxisTininess  Axis = "tininess"
	AxisExactness Axis = "exactness"
	AxisIntType   Axis = "integer type"
	AxisFloatType Axis = "float type"
	AxisOp        Axis = "operation"
	AxisMode      Axis = "mode"
)

// Default vocabularies, in traversal order.
var (
	DefaultRoundModes = []types.RoundMode{
		types.RoundNearEven,
		types.RoundMinMag,
		types.RoundMin,
		types.RoundMax,
		types.RoundNearMaxMag,
	}
	DefaultTininess   = []types.Tininess{types.TininessBefore, types.TininessAfter}
	DefaultExactness  = []types.Exactness{types.Exact, types.NotExact}
	DefaultIntTypes   = []IntType{UI32, UI64, I32, I64}
	DefaultFloatTypes = []FloatType{F32, F64}
	DefaultFloatOps   = []FloatOp{
		"roundToInt", "add", "sub", "mul", "mulAdd", "div", "rem", "sqrt",
		"eq", "le", "lt", "eq_signaling", "le_quiet", "lt_quiet", OpConvert,
	}
	Modes = []Mode{ModeLevel2, ModeRelease, ModeNoExit, ModeStderr, ModeCoverage, ModeQEMU, ModeNative}
)

var vocabulary = buildVocabulary()

func buildVocabulary() map[string]Axis {
	v := make(map[string]Axis)
	for _, m := range DefaultRoundModes {
		v[string(m)] = AxisRoundMode
	}
	v[string(types.RoundOdd)] = AxisRoundMode
	for _, m := range DefaultTininess {
		v[string(m)] = AxisTininess
	}
	for _, m := range DefaultExactness {
		v[string(m)] = AxisExactness
	}
	for _, m := range DefaultIntTypes {
		v[string(m)] = AxisIntType
	}
	for _, m := range DefaultFloatTypes {
		v[string(m)] = AxisFloatType
	}
	for _, m := range DefaultFloatOps {
		v[string(m)] = AxisOp
	}
	for _, m := range Modes {
		v[string(m)] = AxisMode
	}
	return v
}

// Classify returns the axis a token belongs to.
func Classify(token string) (Axis, bool) {
	axis, ok := vocabulary[token]
	return axis, ok
}
