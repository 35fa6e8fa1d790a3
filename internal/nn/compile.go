package nn

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/types/shapes"
	timage "github.com/gomlx/gomlx/types/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
)

// Channels-first layout throughout: the channel axis of every intermediate
// tensor is axis 1, after the batch axis.
const channelsAxis = 1

// Forward compiles the spec into the GoMLX computation graph, creating (or
// reusing) each layer's variables in a context scope named after the layer.
// The input must be shaped [batch, spec.InputPlanes, spec.InputHeight,
// spec.InputWidth]; it returns the policy logits after softmax, shaped
// [batch, nLabels], and the value output shaped [batch, 1].
//
// Malformed specs panic: this mirrors how graph construction reports every
// other wiring error, and Build/Load validate specs before compiling.
func Forward(ctx *context.Context, spec *GraphSpec, input *Node) (policy, value *Node) {
	input.AssertDims(-1, spec.InputPlanes, spec.InputHeight, spec.InputWidth)
	nodes := map[string]*Node{InputLayerName: input}
	resolve := func(layer LayerSpec, idx int) *Node {
		node, found := nodes[layer.Inputs[idx]]
		if !found {
			exceptions.Panicf("nn: layer %q references undefined layer %q", layer.Name, layer.Inputs[idx])
		}
		return node
	}

	for _, layer := range spec.Layers {
		x := resolve(layer, 0)
		layerCtx := ctx.In(layer.Name)
		switch layer.Kind {
		case KindConv:
			x = layers.Convolution(layerCtx, x).
				Filters(layer.Filters).
				KernelSizePerDim(layer.KernelH, layer.KernelW).
				ChannelsAxis(timage.ChannelsFirst).
				PadSame().
				UseBias(false).
				Done()
		case KindSeparableConv:
			x = separableConv(layerCtx, x, layer)
		case KindBatchNorm:
			x = batchnorm.New(layerCtx, x, channelsAxis).Done()
		case KindActivation:
			x = activate(x, layer)
		case KindAdd:
			x = Add(x, resolve(layer, 1))
		case KindConcat:
			branches := make([]*Node, len(layer.Inputs))
			for ii := range layer.Inputs {
				branches[ii] = resolve(layer, ii)
			}
			x = Concatenate(branches, channelsAxis)
		case KindFlatten:
			batchSize := x.Shape().Dim(0)
			x = Reshape(x, batchSize, x.Shape().Size()/batchSize)
		case KindDense:
			x = layers.Dense(layerCtx, x, true, layer.Units)
			x = activate(x, layer)
		default:
			exceptions.Panicf("nn: layer %q has unknown kind %q", layer.Name, layer.Kind)
		}
		nodes[layer.Name] = x
	}
	return nodes[spec.PolicyOutput], nodes[spec.ValueOutput]
}

// separableConv implements a depthwise-separable convolution: a grouped
// depthwise convolution with depth multiplier 1, followed by a 1×1 pointwise
// convolution projecting to the layer's filter count. Neither part has a
// bias term.
func separableConv(ctx *context.Context, x *Node, layer LayerSpec) *Node {
	g := x.Graph()
	inputChannels := x.Shape().Dim(channelsAxis)
	// Channels-first kernel layout: [input_channels_per_group, kH, kW,
	// output_channels]. Grouping by every input channel leaves one input
	// channel per group.
	depthwiseVar := ctx.VariableWithShape("depthwise_weights",
		shapes.Make(dtypes.Float32, 1, layer.KernelH, layer.KernelW, inputChannels))
	x = Convolve(x, depthwiseVar.ValueGraph(g)).
		ChannelsAxis(timage.ChannelsFirst).
		PadSame().
		FeatureGroupCount(inputChannels).
		Done()
	return layers.Convolution(ctx.In("pointwise"), x).
		Filters(layer.Filters).
		KernelSizePerDim(1, 1).
		ChannelsAxis(timage.ChannelsFirst).
		PadSame().
		UseBias(false).
		Done()
}

func activate(x *Node, layer LayerSpec) *Node {
	switch layer.Activation {
	case ActivationLinear:
		return x
	case ActivationRelu:
		return activations.Relu(x)
	case ActivationLeakyRelu:
		return activations.LeakyReluWithAlpha(x, layer.Alpha)
	case ActivationSoftmax:
		return Softmax(x)
	case ActivationTanh:
		return Tanh(x)
	default:
		exceptions.Panicf("nn: layer %q has unknown activation %q", layer.Name, layer.Activation)
	}
	return nil
}
