// Package nn defines the chesszero network architectures as declarative
// graph specifications, and compiles them to GoMLX computation graphs.
//
// A GraphSpec is a topologically ordered list of named layer descriptors.
// It is the unit of architecture persistence: its JSON serialization is the
// architecture artifact saved next to the weights, and it is sufficient to
// rebuild the computation graph without the weights. The two supported
// architectures are built by the pure functions ResidualSpec and
// MultiScaleSpec.
package nn

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// InputLayerName is the reserved name layers use to reference the graph
// input tensor.
const InputLayerName = "input"

// LayerKind identifies the operation a LayerSpec describes.
type LayerKind string

const (
	// KindConv is a 2D convolution, padding "same", channels-first, no bias.
	KindConv LayerKind = "conv2d"
	// KindSeparableConv is a depthwise convolution (depth multiplier 1)
	// followed by a 1×1 pointwise convolution, padding "same", no bias.
	KindSeparableConv LayerKind = "separable_conv2d"
	// KindBatchNorm normalizes over the channel axis.
	KindBatchNorm LayerKind = "batch_norm"
	// KindActivation applies a pointwise non-linearity.
	KindActivation LayerKind = "activation"
	// KindAdd sums its two inputs (residual connection).
	KindAdd LayerKind = "add"
	// KindConcat concatenates its inputs along the channel axis.
	KindConcat LayerKind = "concat"
	// KindFlatten reshapes to [batch, features].
	KindFlatten LayerKind = "flatten"
	// KindDense is a fully-connected layer with bias, optionally followed
	// by the activation named in the spec.
	KindDense LayerKind = "dense"
)

// Activation names understood by the compiler.
type Activation string

const (
	ActivationLinear    Activation = ""
	ActivationRelu      Activation = "relu"
	ActivationLeakyRelu Activation = "leaky_relu"
	ActivationSoftmax   Activation = "softmax"
	ActivationTanh      Activation = "tanh"
)

// LayerSpec describes one layer of the computation graph. Only the fields
// meaningful for its Kind are set.
type LayerSpec struct {
	// Name is deterministic and human-readable, encoding the layer's role,
	// index and, for convolutions, kernel size and filter count. Names key
	// the layer's variables in the weight artifact.
	Name string `json:"name"`

	Kind LayerKind `json:"kind"`

	// Inputs lists the producing layers, in order. InputLayerName refers to
	// the graph input.
	Inputs []string `json:"inputs"`

	// Filters is the output channel count of conv/separable-conv layers.
	Filters int `json:"filters,omitempty"`

	// KernelH and KernelW are the kernel spatial dimensions.
	KernelH int `json:"kernel_h,omitempty"`
	KernelW int `json:"kernel_w,omitempty"`

	// Units is the output width of dense layers.
	Units int `json:"units,omitempty"`

	// Activation applied by KindActivation layers, or fused after a dense
	// layer's affine transform.
	Activation Activation `json:"activation,omitempty"`

	// Alpha is the negative slope of leaky-relu activations.
	Alpha float64 `json:"alpha,omitempty"`
}

// GraphSpec is the full declarative description of a dual-headed network:
// the input shape, the ordered layer list and which layers are the two
// outputs.
type GraphSpec struct {
	// Name of the architecture.
	Name string `json:"name"`

	// Input tensor shape (channels-first), not including the batch axis.
	InputPlanes int `json:"input_planes"`
	InputHeight int `json:"input_height"`
	InputWidth  int `json:"input_width"`

	// L2Reg is the weight-regularization strength applied to every
	// convolution and dense kernel. Zero disables regularization.
	L2Reg float64 `json:"l2_reg"`

	Layers []LayerSpec `json:"layers"`

	// PolicyOutput and ValueOutput name the layers producing the two heads.
	PolicyOutput string `json:"policy_output"`
	ValueOutput  string `json:"value_output"`
}

// InputSize returns the flat element count of one input example.
func (s *GraphSpec) InputSize() int {
	return s.InputPlanes * s.InputHeight * s.InputWidth
}

// add appends a layer and returns its name, so specs read as a chain.
func (s *GraphSpec) add(layer LayerSpec) string {
	s.Layers = append(s.Layers, layer)
	return layer.Name
}

// Validate checks the spec forms a well-named DAG in topological order with
// both outputs defined. It does not check shapes: shape mismatches surface
// when the graph is compiled.
func (s *GraphSpec) Validate() error {
	if s.InputPlanes <= 0 || s.InputHeight <= 0 || s.InputWidth <= 0 {
		return errors.Errorf("graph spec %q has invalid input shape (%d, %d, %d)",
			s.Name, s.InputPlanes, s.InputHeight, s.InputWidth)
	}
	seen := map[string]bool{InputLayerName: true}
	for ii, layer := range s.Layers {
		if layer.Name == "" || layer.Name == InputLayerName {
			return errors.Errorf("graph spec %q: layer #%d has reserved or empty name %q", s.Name, ii, layer.Name)
		}
		if seen[layer.Name] {
			return errors.Errorf("graph spec %q: duplicate layer name %q", s.Name, layer.Name)
		}
		if len(layer.Inputs) == 0 {
			return errors.Errorf("graph spec %q: layer %q has no inputs", s.Name, layer.Name)
		}
		for _, input := range layer.Inputs {
			if !seen[input] {
				return errors.Errorf("graph spec %q: layer %q references %q before its definition",
					s.Name, layer.Name, input)
			}
		}
		seen[layer.Name] = true
	}
	for _, output := range []string{s.PolicyOutput, s.ValueOutput} {
		if !seen[output] {
			return errors.Errorf("graph spec %q: output layer %q is not defined", s.Name, output)
		}
	}
	return nil
}

// MarshalJSON serializes the spec after validating it, so a corrupt spec is
// never persisted as an architecture artifact.
func (s *GraphSpec) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	type alias GraphSpec // Drops the method set, avoiding recursion.
	return json.Marshal((*alias)(s))
}

// UnmarshalJSON deserializes and validates an architecture artifact.
func (s *GraphSpec) UnmarshalJSON(data []byte) error {
	type alias GraphSpec
	if err := json.Unmarshal(data, (*alias)(s)); err != nil {
		return err
	}
	return s.Validate()
}

// convName formats convolution layer names encoding role, kernel size and
// filter count, e.g. "input_conv-5-256".
func convName(role string, kernelSize, filters int) string {
	return fmt.Sprintf("%s-%d-%d", role, kernelSize, filters)
}
