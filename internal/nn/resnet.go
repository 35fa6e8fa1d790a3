package nn

import (
	"fmt"

	"github.com/chesszero/chesszero/internal/board"
	"github.com/chesszero/chesszero/internal/config"
)

// Policy and value head channel counts, shared by both architectures.
const (
	policyHeadChannels = 2
	valueHeadChannels  = 4
)

// ResidualSpec builds the base architecture: a convolution stem followed by
// a tower of residual blocks, branching into a softmax policy head and a
// tanh value head. All convolution and dense kernels carry L2 regularization
// at the configured strength; convolutions have no bias (the batch
// normalization that follows each one absorbs it).
func ResidualSpec(cfg *config.Config) *GraphSpec {
	mc := cfg.Model
	s := &GraphSpec{
		Name:        "chess_model",
		InputPlanes: board.NumPlanes,
		InputHeight: board.Size,
		InputWidth:  board.Size,
		L2Reg:       mc.L2Reg,
	}

	// Stem.
	x := s.add(LayerSpec{
		Name:    convName("input_conv", mc.CnnFirstFilterSize, mc.CnnFilterNum),
		Kind:    KindConv,
		Inputs:  []string{InputLayerName},
		Filters: mc.CnnFilterNum,
		KernelH: mc.CnnFirstFilterSize,
		KernelW: mc.CnnFirstFilterSize,
	})
	x = s.add(LayerSpec{Name: "input_batchnorm", Kind: KindBatchNorm, Inputs: []string{x}})
	x = s.add(LayerSpec{Name: "input_relu", Kind: KindActivation, Inputs: []string{x}, Activation: ActivationRelu})

	// Residual tower.
	for ii := 1; ii <= mc.ResLayerNum; ii++ {
		x = s.addResidualBlock(x, ii, mc)
	}
	resOut := x

	// Policy head.
	x = s.add(LayerSpec{
		Name:    convName("policy_conv", 1, policyHeadChannels),
		Kind:    KindConv,
		Inputs:  []string{resOut},
		Filters: policyHeadChannels,
		KernelH: 1,
		KernelW: 1,
	})
	x = s.add(LayerSpec{Name: "policy_batchnorm", Kind: KindBatchNorm, Inputs: []string{x}})
	x = s.add(LayerSpec{Name: "policy_relu", Kind: KindActivation, Inputs: []string{x}, Activation: ActivationRelu})
	x = s.add(LayerSpec{Name: "policy_flatten", Kind: KindFlatten, Inputs: []string{x}})
	// One unit per encoded move; there is no "pass" unit.
	s.PolicyOutput = s.add(LayerSpec{
		Name:       "policy_out",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      cfg.NLabels,
		Activation: ActivationSoftmax,
	})

	// Value head, branching off the same tower output.
	x = s.add(LayerSpec{
		Name:    convName("value_conv", 1, valueHeadChannels),
		Kind:    KindConv,
		Inputs:  []string{resOut},
		Filters: valueHeadChannels,
		KernelH: 1,
		KernelW: 1,
	})
	x = s.add(LayerSpec{Name: "value_batchnorm", Kind: KindBatchNorm, Inputs: []string{x}})
	x = s.add(LayerSpec{Name: "value_relu", Kind: KindActivation, Inputs: []string{x}, Activation: ActivationRelu})
	x = s.add(LayerSpec{Name: "value_flatten", Kind: KindFlatten, Inputs: []string{x}})
	x = s.add(LayerSpec{
		Name:       "value_dense",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      mc.ValueFCSize,
		Activation: ActivationRelu,
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

// addResidualBlock appends one conv-bn-relu-conv-bn-add-relu block and
// returns the name of its output layer.
func (s *GraphSpec) addResidualBlock(input string, index int, mc config.ModelConfig) string {
	resName := fmt.Sprintf("res%d", index)
	x := s.add(LayerSpec{
		Name:    convName(resName+"_conv1", mc.CnnFilterSize, mc.CnnFilterNum),
		Kind:    KindConv,
		Inputs:  []string{input},
		Filters: mc.CnnFilterNum,
		KernelH: mc.CnnFilterSize,
		KernelW: mc.CnnFilterSize,
	})
	x = s.add(LayerSpec{Name: resName + "_batchnorm1", Kind: KindBatchNorm, Inputs: []string{x}})
	x = s.add(LayerSpec{Name: resName + "_relu1", Kind: KindActivation, Inputs: []string{x}, Activation: ActivationRelu})
	x = s.add(LayerSpec{
		Name:    convName(resName+"_conv2", mc.CnnFilterSize, mc.CnnFilterNum),
		Kind:    KindConv,
		Inputs:  []string{x},
		Filters: mc.CnnFilterNum,
		KernelH: mc.CnnFilterSize,
		KernelW: mc.CnnFilterSize,
	})
	x = s.add(LayerSpec{Name: resName + "_batchnorm2", Kind: KindBatchNorm, Inputs: []string{x}})
	x = s.add(LayerSpec{Name: resName + "_add", Kind: KindAdd, Inputs: []string{input, x}})
	return s.add(LayerSpec{Name: resName + "_relu2", Kind: KindActivation, Inputs: []string{x}, Activation: ActivationRelu})
}
