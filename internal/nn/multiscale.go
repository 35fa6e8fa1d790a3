package nn

import (
	"fmt"

	"github.com/chesszero/chesszero/internal/board"
	"github.com/chesszero/chesszero/internal/config"
	"github.com/gomlx/exceptions"
)

// Multi-scale architecture constants. The blocks trade residual depth for
// multi-scale spatial receptive fields under a fixed total channel budget.
const (
	// MultiScaleBlocks is the number of multi-branch blocks.
	MultiScaleBlocks = 6
	// MultiScaleChannels is the total channel budget of every block.
	MultiScaleChannels = 128
	// MultiScaleAlongAxisChannels is the width of each of the two
	// single-axis (1×15 and 15×1) branches.
	MultiScaleAlongAxisChannels = 16
	// MultiScaleConv15Channels is the width of the full 15×15 branch.
	MultiScaleConv15Channels = 4
	// MultiScaleLeakyAlpha is the negative slope used by every leaky-relu
	// of this architecture.
	MultiScaleLeakyAlpha = 0.3
)

// BranchWidths splits a total channel budget into the four per-block branch
// widths (5×5, 15×15, 1×15, 15×1). The widths always sum exactly to
// channels; it panics if the fixed side branches leave no room for the 5×5
// branch.
func BranchWidths(channels, alongAxisChannels, conv15Channels int) (conv5, conv15, along1, along2 int) {
	conv5 = channels - 2*alongAxisChannels - conv15Channels
	if conv5 <= 0 {
		exceptions.Panicf("multi-scale channel budget %d too small for side branches (2×%d + %d)",
			channels, alongAxisChannels, conv15Channels)
	}
	return conv5, conv15Channels, alongAxisChannels, alongAxisChannels
}

// MultiScaleSpec builds the alternative architecture: a pointwise projection
// to a fixed channel width, followed by blocks of four parallel
// separable-convolution branches concatenated on the channel axis, with
// heads structurally identical to ResidualSpec's.
//
// Two documented divergences from the residual architecture are intentional
// and preserved: heads use leaky-relu (slope 0.3) instead of relu, and no
// layer carries L2 regularization.
func MultiScaleSpec(cfg *config.Config) *GraphSpec {
	mc := cfg.Model
	s := &GraphSpec{
		Name:        "chess_model_multiscale",
		InputPlanes: board.NumPlanes,
		InputHeight: board.Size,
		InputWidth:  board.Size,
	}

	x := s.addPointwise("input", InputLayerName, MultiScaleChannels)
	for ii := 1; ii <= MultiScaleBlocks; ii++ {
		x = s.addMultiScaleBlock(x, ii)
	}
	blocksOut := x

	// Policy head.
	x = s.addPointwise("policy", blocksOut, policyHeadChannels)
	x = s.add(LayerSpec{Name: "policy_flatten", Kind: KindFlatten, Inputs: []string{x}})
	s.PolicyOutput = s.add(LayerSpec{
		Name:       "policy_out",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      cfg.NLabels,
		Activation: ActivationSoftmax,
	})

	// Value head.
	x = s.addPointwise("value", blocksOut, valueHeadChannels)
	x = s.add(LayerSpec{Name: "value_flatten", Kind: KindFlatten, Inputs: []string{x}})
	x = s.add(LayerSpec{
		Name:   "value_dense",
		Kind:   KindDense,
		Inputs: []string{x},
		Units:  mc.ValueFCSize,
	})
	x = s.add(LayerSpec{
		Name:       "value_leakyrelu",
		Kind:       KindActivation,
		Inputs:     []string{x},
		Activation: ActivationLeakyRelu,
		Alpha:      MultiScaleLeakyAlpha,
	})
	s.ValueOutput = s.add(LayerSpec{
		Name:       "value_out",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      1,
		Activation: ActivationTanh,
	})
	return s
}

// addPointwise appends a 1×1 convolution + batch-norm + leaky-relu
// projection and returns the name of its output layer.
func (s *GraphSpec) addPointwise(role, input string, channels int) string {
	x := s.add(LayerSpec{
		Name:    convName(role+"_pointwise", 1, channels),
		Kind:    KindConv,
		Inputs:  []string{input},
		Filters: channels,
		KernelH: 1,
		KernelW: 1,
	})
	x = s.add(LayerSpec{Name: role + "_pointwise_batchnorm", Kind: KindBatchNorm, Inputs: []string{x}})
	return s.add(LayerSpec{
		Name:       role + "_pointwise_leakyrelu",
		Kind:       KindActivation,
		Inputs:     []string{x},
		Activation: ActivationLeakyRelu,
		Alpha:      MultiScaleLeakyAlpha,
	})
}

// addSeparable appends a separable convolution + batch-norm + leaky-relu and
// returns the name of its output layer.
func (s *GraphSpec) addSeparable(role, input string, channels, kernelH, kernelW int) string {
	x := s.add(LayerSpec{
		Name:    fmt.Sprintf("%s_sep-%dx%d-%d", role, kernelH, kernelW, channels),
		Kind:    KindSeparableConv,
		Inputs:  []string{input},
		Filters: channels,
		KernelH: kernelH,
		KernelW: kernelW,
	})
	x = s.add(LayerSpec{Name: role + "_sep_batchnorm", Kind: KindBatchNorm, Inputs: []string{x}})
	return s.add(LayerSpec{
		Name:       role + "_sep_leakyrelu",
		Kind:       KindActivation,
		Inputs:     []string{x},
		Activation: ActivationLeakyRelu,
		Alpha:      MultiScaleLeakyAlpha,
	})
}

// addMultiScaleBlock appends one four-branch block over the same input and
// concatenates the branches along the channel axis.
func (s *GraphSpec) addMultiScaleBlock(input string, index int) string {
	conv5Ch, conv15Ch, along1Ch, along2Ch := BranchWidths(
		MultiScaleChannels, MultiScaleAlongAxisChannels, MultiScaleConv15Channels)
	blockName := fmt.Sprintf("block%d", index)

	conv5 := s.addSeparable(blockName+"_conv5", input, conv5Ch, 5, 5)

	along1 := s.addPointwise(blockName+"_along1", input, along1Ch)
	along1 = s.addSeparable(blockName+"_along1", along1, along1Ch, 1, 15)

	along2 := s.addPointwise(blockName+"_along2", input, along2Ch)
	along2 = s.addSeparable(blockName+"_along2", along2, along2Ch, 15, 1)

	conv15 := s.addPointwise(blockName+"_conv15", input, conv15Ch)
	conv15 = s.addSeparable(blockName+"_conv15", conv15, conv15Ch, 15, 15)

	return s.add(LayerSpec{
		Name:   blockName + "_concat",
		Kind:   KindConcat,
		Inputs: []string{conv5, conv15, along1, along2},
	})
}
