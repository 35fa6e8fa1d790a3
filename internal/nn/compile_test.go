package nn

import (
	"fmt"
	"math"
	"testing"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/simplego"
)

// forwardOnce compiles the spec and runs it once over a zero input batch.
func forwardOnce(t *testing.T, spec *GraphSpec, batchSize int) (policyT, valueT *tensors.Tensor) {
	t.Helper()
	require.NoError(t, spec.Validate())
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.RngStateReset()
	input := tensors.FromShape(shapes.Make(dtypes.Float32,
		batchSize, spec.InputPlanes, spec.InputHeight, spec.InputWidth))
	outputs := context.ExecOnceN(backend, ctx.Checked(false),
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			policy, value := Forward(ctx, spec, inputs[0])
			return []*graph.Node{policy, value}
		}, input)
	return outputs[0], outputs[1]
}

func checkHeads(t *testing.T, policyT, valueT *tensors.Tensor, batchSize, nLabels int) {
	t.Helper()
	policyT.Shape().AssertDims(batchSize, nLabels)
	valueT.Shape().AssertDims(batchSize, 1)

	policies := tensors.CopyFlatData[float32](policyT)
	for b := 0; b < batchSize; b++ {
		var sum float64
		for _, p := range policies[b*nLabels : (b+1)*nLabels] {
			require.False(t, math.IsNaN(float64(p)))
			require.GreaterOrEqual(t, p, float32(0))
			sum += float64(p)
		}
		require.InDeltaf(t, 1.0, sum, 1e-5, "policy of example %d sums to %f", b, sum)
	}
	for _, v := range tensors.CopyFlatData[float32](valueT) {
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(-1))
		require.LessOrEqual(t, v, float32(1))
	}
}

// The standard chess label space with a reduced tower: the policy must be a
// proper distribution over all 1968 encoded moves and the value a single
// scalar in [-1, 1], even on an all-zero input.
func TestResidualForward(t *testing.T) {
	cfg := config.Default()
	cfg.Model.CnnFilterNum = 32
	cfg.Model.ResLayerNum = 2
	cfg.Model.ValueFCSize = 32
	require.Equal(t, 1968, cfg.NLabels)

	policyT, valueT := forwardOnce(t, ResidualSpec(cfg), 1)
	fmt.Printf("value: %s\n", valueT)
	checkHeads(t, policyT, valueT, 1, cfg.NLabels)
}

func TestMultiScaleForward(t *testing.T) {
	cfg := config.Default()
	cfg.NLabels = 64
	cfg.Model.ValueFCSize = 16

	policyT, valueT := forwardOnce(t, MultiScaleSpec(cfg), 2)
	checkHeads(t, policyT, valueT, 2, cfg.NLabels)
}

// Compiling the same spec twice into different contexts yields independent
// graphs with the same topology but independently initialized parameters.
func TestForwardIndependentInitialization(t *testing.T) {
	cfg := config.Default()
	cfg.NLabels = 32
	cfg.Model.CnnFilterNum = 8
	cfg.Model.ResLayerNum = 1
	cfg.Model.ValueFCSize = 8
	spec := ResidualSpec(cfg)

	backend := graphtest.BuildTestBackend()
	input := func() *tensors.Tensor {
		in := tensors.FromShape(shapes.Make(dtypes.Float32,
			1, spec.InputPlanes, spec.InputHeight, spec.InputWidth))
		tensors.MutableFlatData(in, func(flat []float32) {
			for ii := range flat {
				flat[ii] = float32(ii%7) - 3
			}
		})
		return in
	}

	run := func() []float32 {
		ctx := context.New()
		ctx.RngStateReset()
		outputs := context.ExecOnceN(backend, ctx.Checked(false),
			func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
				policy, value := Forward(ctx, spec, inputs[0])
				return []*graph.Node{policy, value}
			}, input())
		return tensors.CopyFlatData[float32](outputs[0])
	}
	first, second := run(), run()
	assert.NotEqual(t, first, second)
}

// The depthwise kernel of a separable convolution carries its grouped input
// channel on axis 0 and the spatial dims on axes 1 and 2; the asymmetric
// kernel below would either be rejected by the convolution or transposed to
// 5x1 under any other layout.
func TestSeparableConvKernelLayout(t *testing.T) {
	spec := &GraphSpec{
		Name:        "separable_layout",
		InputPlanes: 3,
		InputHeight: 8,
		InputWidth:  8,
	}
	x := spec.add(LayerSpec{
		Name:    "sep-1x5-4",
		Kind:    KindSeparableConv,
		Inputs:  []string{InputLayerName},
		Filters: 4,
		KernelH: 1,
		KernelW: 5,
	})
	x = spec.add(LayerSpec{Name: "flatten", Kind: KindFlatten, Inputs: []string{x}})
	spec.PolicyOutput = spec.add(LayerSpec{
		Name:       "policy_out",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      4,
		Activation: ActivationSoftmax,
	})
	spec.ValueOutput = spec.add(LayerSpec{
		Name:       "value_out",
		Kind:       KindDense,
		Inputs:     []string{x},
		Units:      1,
		Activation: ActivationTanh,
	})
	require.NoError(t, spec.Validate())

	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	ctx.RngStateReset()
	input := tensors.FromShape(shapes.Make(dtypes.Float32, 2, 3, 8, 8))
	outputs := context.ExecOnceN(backend, ctx.Checked(false),
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			policy, value := Forward(ctx, spec, inputs[0])
			return []*graph.Node{policy, value}
		}, input)
	checkHeads(t, outputs[0], outputs[1], 2, 4)

	var depthwise *context.Variable
	ctx.EnumerateVariables(func(v *context.Variable) {
		if v.Name() == "depthwise_weights" {
			depthwise = v
		}
	})
	require.NotNil(t, depthwise)
	depthwise.Value().Shape().AssertDims(1, 1, 5, 3)
}
