package matrix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// selectionFile is the on-disk form of a Selection.
type selectionFile struct {
	RoundModes []string `yaml:"round_modes"`
	Tininess   []string `yaml:"tininess"`
	Exactness  []string `yaml:"exactness"`
	IntTypes   []string `yaml:"int_types"`
	FloatTypes []string `yaml:"float_types"`
	Ops        []string `yaml:"ops"`
	Modes      []string `yaml:"modes"`
}

// LoadSelectionFile reads a YAML selection profile such as
//
//	round_modes: [rnear_even, rodd]
//	float_types: [f64]
//	ops: [add, mulAdd, to]
//	modes: [level2]
//
// Every value must belong to the axis it is listed under.
func LoadSelectionFile(path string) (Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Selection{}, fmt.Errorf("failed to read selection file: %w", err)
	}
	return ParseSelectionFile(data)
}

// ParseSelectionFile decodes a YAML selection profile.
func ParseSelectionFile(data []byte) (Selection, error) {
	var f selectionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Selection{}, fmt.Errorf("failed to parse selection file: %w", err)
	}

	var sel Selection
	axes := []struct {
		axis   Axis
		values []string
	}{
		{AxisRoundMode, f.RoundModes},
		{AxisTininess, f.Tininess},
		{AxisExactness, f.Exactness},
		{AxisIntType, f.IntTypes},
		{AxisFloatType, f.FloatTypes},
		{AxisOp, f.Ops},
		{AxisMode, f.Modes},
	}
	for _, a := range axes {
		for _, v := range a.values {
			if axis, ok := Classify(v); !ok || axis != a.axis {
				return Selection{}, &UnknownTokenError{Token: v, Axis: a.axis}
			}
			sel.add(a.axis, v)
		}
	}
	return sel, nil
}
