// Package model implements the dual-headed chess network: building the
// computation graph from an architecture spec, running inference, and
// persisting/restoring the (architecture, weights) artifact pair with
// digest-based versioning and optional remote mirroring of the best-model
// slot.
package model

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/chesszero/chesszero/internal/nn"
	"github.com/chesszero/chesszero/internal/remote"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend is a singleton, shared by every model instance.
var backend = sync.OnceValue(func() backends.Backend { return backends.MustNew() })

// Variant selects which of the two architectures Build materializes.
type Variant int

const (
	// VariantResidual is the base residual-tower architecture.
	VariantResidual Variant = iota
	// VariantMultiScale is the multi-branch separable-convolution
	// architecture.
	VariantMultiScale
)

func (v Variant) String() string {
	switch v {
	case VariantResidual:
		return "residual"
	case VariantMultiScale:
		return "multi_scale"
	}
	return "invalid_variant"
}

// VariantFromString parses a Variant name.
func VariantFromString(name string) (Variant, error) {
	switch name {
	case "residual":
		return VariantResidual, nil
	case "multi_scale":
		return VariantMultiScale, nil
	}
	return VariantResidual, errors.Errorf("unknown model variant %q", name)
}

// Spec returns the variant's architecture for the given configuration.
func (v Variant) Spec(cfg *config.Config) *nn.GraphSpec {
	if v == VariantMultiScale {
		return nn.MultiScaleSpec(cfg)
	}
	return nn.ResidualSpec(cfg)
}

// ChessModel maps encoded chess positions to a move-policy distribution and
// a position value. It is created empty; Build or Load populates the graph.
//
// A ChessModel is not safe for concurrent mutation: callers must serialize
// Build/Load/Save on the same instance. Inference through the serving pipes
// (GetPipes) is safe to share between goroutines.
type ChessModel struct {
	config  *config.Config
	variant Variant

	// Graph state, replaced wholesale by each Build or Load.
	spec        *nn.GraphSpec
	ctx         *context.Context
	predictExec *context.Exec

	// digest of the weight artifact, empty until one has been read or
	// written at least once.
	digest string

	// mirror of the best-model slot, nil when not distributed.
	mirror   remote.Mirror
	lastSync remote.Outcome

	// api is created lazily by the first GetPipes call.
	api     *servingAPI
	apiOnce sync.Once
}

// New creates an empty model for the given configuration. When the
// configuration marks the model distributed, the best-model slot is mirrored
// through an FTP store built from the resource settings.
func New(cfg *config.Config, variant Variant) *ChessModel {
	m := &ChessModel{config: cfg, variant: variant}
	if cfg.Model.Distributed {
		m.mirror = remote.NewFTPMirror(cfg.Resource)
	}
	return m
}

// SetMirror replaces the remote mirror. Passing nil disables mirroring even
// in distributed mode.
func (m *ChessModel) SetMirror(mirror remote.Mirror) { m.mirror = mirror }

// Config returns the configuration the model was created with.
func (m *ChessModel) Config() *config.Config { return m.config }

// Built reports whether the model holds a materialized graph.
func (m *ChessModel) Built() bool { return m.ctx != nil }

// Spec returns the architecture of the current graph, or nil before
// Build/Load.
func (m *ChessModel) Spec() *nn.GraphSpec { return m.spec }

// Digest returns the SHA-256 hex digest of the weight artifact last read or
// written, or "" if weights were never persisted.
func (m *ChessModel) Digest() string { return m.digest }

// LastSyncOutcome reports what the most recent Load/Save did about the
// remote store: skipped, synchronized, or attempted and failed.
func (m *ChessModel) LastSyncOutcome() remote.Outcome { return m.lastSync }

// Build materializes the computation graph for the configured variant with
// freshly initialized parameters. Calling it again discards the previous
// graph entirely and re-initializes.
func (m *ChessModel) Build() {
	spec := m.variant.Spec(m.config)
	ctx, exec := m.compile(spec)
	m.install(spec, ctx, exec)
	klog.V(1).Infof("built %s model: %d layers, policy width %d",
		m.variant, len(spec.Layers), m.config.NLabels)
}

// compile creates a fresh context and inference executor for the spec, and
// warms the executor once so every variable is materialized before any
// weight load or save.
func (m *ChessModel) compile(spec *nn.GraphSpec) (*context.Context, *context.Exec) {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		regularizers.ParamL2: spec.L2Reg,
	})
	exec := context.NewExec(backend(), ctx.Checked(false),
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			policy, value := nn.Forward(ctx, spec, inputs[0])
			return []*graph.Node{policy, value}
		})

	// Warm-up with a single zero example: creates/loads all variables.
	warmup := tensors.FromShape(shapes.Make(dtypes.Float32, 1, spec.InputPlanes, spec.InputHeight, spec.InputWidth))
	_ = exec.Call(warmup)
	return ctx, exec
}

// install commits a compiled graph, discarding any previous one.
func (m *ChessModel) install(spec *nn.GraphSpec, ctx *context.Context, exec *context.Exec) {
	if m.predictExec != nil {
		m.predictExec.Finalize()
	}
	m.spec = spec
	m.ctx = ctx
	m.predictExec = exec
}

// Predict runs inference for a single encoded position (InputSize float32
// planes) and returns the policy distribution and the position value.
func (m *ChessModel) Predict(planes []float32) (policy []float32, value float32, err error) {
	policies, values, err := m.BatchPredict([][]float32{planes})
	if err != nil {
		return nil, 0, err
	}
	return policies[0], values[0], nil
}

// BatchPredict runs inference for a batch of encoded positions. The batch is
// padded up to a small set of supported sizes so the executor does not
// compile a new program for every distinct batch size; padding is trimmed
// from the results.
func (m *ChessModel) BatchPredict(batch [][]float32) (policies [][]float32, values []float32, err error) {
	if m.ctx == nil {
		return nil, nil, errors.New("model has not been built or loaded")
	}
	numExamples := len(batch)
	if numExamples == 0 {
		return nil, nil, nil
	}
	inputSize := m.spec.InputSize()
	paddedSize := m.paddedBatchSize(numExamples)
	input := tensors.FromShape(shapes.Make(dtypes.Float32,
		paddedSize, m.spec.InputPlanes, m.spec.InputHeight, m.spec.InputWidth))
	tensors.MutableFlatData(input, func(flat []float32) {
		for ii, example := range batch {
			copy(flat[ii*inputSize:(ii+1)*inputSize], example)
		}
	})

	outputs := m.predictExec.Call(graph.DonateTensorBuffer(input, backend()))
	policyT, valueT := outputs[0], outputs[1]
	policyFlat := tensors.CopyFlatData[float32](policyT)
	valueFlat := tensors.CopyFlatData[float32](valueT)

	nLabels := policyT.Shape().Dim(1)
	policies = make([][]float32, numExamples)
	for ii := range policies {
		policies[ii] = policyFlat[ii*nLabels : (ii+1)*nLabels]
	}
	return policies, valueFlat[:numExamples], nil
}

// paddedBatchSize returns the executor batch size used for numExamples:
// the configured batch size when it fits exactly, otherwise 1 or a size from
// a geometric progression, limiting how many compiled program versions the
// executor accumulates.
func (m *ChessModel) paddedBatchSize(numExamples int) int {
	if numExamples == 1 || numExamples == m.config.Model.BatchSize {
		return numExamples
	}
	paddedSize := 8
	for paddedSize < numExamples {
		paddedSize = paddedSize + (paddedSize+1)/2
	}
	return paddedSize
}

// Load restores the model from the (architecture, weights) artifact pair.
//
// For the distributed best-model slot it first attempts to refresh both
// files from the remote store; a remote failure is recorded as an Outcome
// and otherwise ignored, the local copy being authoritative. It returns
// false, without touching any graph already in memory, when either local
// file is missing.
func (m *ChessModel) Load(configPath, weightPath string) (bool, error) {
	m.lastSync = remote.OutcomeSkipped
	if m.mirror != nil && m.config.Model.Distributed && m.config.IsBestModelSlot(configPath, weightPath) {
		m.fetchBest(configPath, weightPath)
	}

	if !fileExists(configPath) || !fileExists(weightPath) {
		klog.V(1).Infof("model files do not exist at %s and %s", configPath, weightPath)
		return false, nil
	}

	specBytes, err := os.ReadFile(configPath)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read model config from %s", configPath)
	}
	spec := &nn.GraphSpec{}
	if err = json.Unmarshal(specBytes, spec); err != nil {
		return false, errors.Wrapf(err, "failed to parse model config from %s", configPath)
	}

	// The digest is read before compiling: a false return must leave the
	// previous graph and digest untouched, so nothing is installed until
	// every step that can fail has succeeded.
	digest, err := FetchDigest(weightPath)
	if err != nil {
		return false, err
	}

	klog.V(1).Infof("loading model from %s", configPath)
	ctx, exec := m.compile(spec)
	if err = loadWeights(ctx, weightPath); err != nil {
		exec.Finalize()
		return false, err
	}
	m.install(spec, ctx, exec)
	m.digest = digest
	klog.V(1).Infof("loaded model digest = %s", m.digest)
	return true, nil
}

// fetchBest refreshes the local best-model pair from the remote store,
// best-effort: any failure is recorded and swallowed.
func (m *ChessModel) fetchBest(configPath, weightPath string) {
	klog.V(1).Info("fetching best model from remote store")
	configBytes, weightBytes, err := m.mirror.Fetch()
	if err == nil {
		err = os.WriteFile(configPath, configBytes, 0644)
	}
	if err == nil {
		err = os.WriteFile(weightPath, weightBytes, 0644)
	}
	if err != nil {
		klog.Warningf("remote model store unavailable, falling back to local copy: %v", err)
		m.lastSync = remote.OutcomeUnavailable
		return
	}
	m.lastSync = remote.OutcomeOK
}

// Save persists the current graph as the (architecture, weights) artifact
// pair, overwriting unconditionally, and refreshes the digest. For the
// distributed best-model slot it then pushes both files to the remote store,
// best-effort: the local write is the durable action, the push is
// opportunistic mirroring.
func (m *ChessModel) Save(configPath, weightPath string) error {
	if m.ctx == nil {
		return errors.New("model has not been built or loaded")
	}
	klog.V(1).Infof("saving model to %s", configPath)
	specBytes, err := json.MarshalIndent(m.spec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize model architecture")
	}
	if err = os.WriteFile(configPath, specBytes, 0644); err != nil {
		return errors.Wrapf(err, "failed to write model config to %s", configPath)
	}
	if err = saveWeights(m.ctx, weightPath); err != nil {
		return err
	}
	if m.digest, err = FetchDigest(weightPath); err != nil {
		return err
	}
	klog.V(1).Infof("saved model digest %s", m.digest)

	m.lastSync = remote.OutcomeSkipped
	if m.mirror != nil && m.config.Model.Distributed && m.config.IsBestModelSlot(configPath, weightPath) {
		m.pushBest(specBytes, weightPath)
	}
	return nil
}

// pushBest mirrors the freshly written best-model pair to the remote store,
// best-effort.
func (m *ChessModel) pushBest(specBytes []byte, weightPath string) {
	klog.V(1).Info("pushing best model to remote store")
	weightBytes, err := os.ReadFile(weightPath)
	if err == nil {
		err = m.mirror.Push(specBytes, weightBytes)
	}
	if err != nil {
		klog.Warningf("failed to push model to remote store: %v", err)
		m.lastSync = remote.OutcomeUnavailable
		return
	}
	m.lastSync = remote.OutcomeOK
}

// Finalize frees the compiled graphs and the context. The model is unusable
// afterwards.
func (m *ChessModel) Finalize() {
	if m.api != nil {
		m.api.stop()
	}
	if m.predictExec != nil {
		m.predictExec.Finalize()
		m.predictExec = nil
	}
	if m.ctx != nil {
		m.ctx.Finalize()
		m.ctx = nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
