package params

import (
	"testing"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfigString(t *testing.T) {
	assert.Empty(t, NewFromConfigString(""))

	params := NewFromConfigString("cnn_filter_num=64,distributed,l2_reg=0.001")
	assert.Equal(t, Params{
		"cnn_filter_num": "64",
		"distributed":    "",
		"l2_reg":         "0.001",
	}, params)
}

func TestGetParamOr(t *testing.T) {
	params := NewFromConfigString("a=7,b=3.5,c=hello,d,e=false,bad=xyz")

	got, err := GetParamOr(params, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	gotF, err := GetParamOr(params, "b", 0.0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, gotF)

	gotS, err := GetParamOr(params, "c", "default")
	require.NoError(t, err)
	assert.Equal(t, "hello", gotS)

	// Key without value parses as true; explicit false works too.
	gotB, err := GetParamOr(params, "d", false)
	require.NoError(t, err)
	assert.True(t, gotB)
	gotB, err = GetParamOr(params, "e", true)
	require.NoError(t, err)
	assert.False(t, gotB)

	// Missing keys yield the default.
	got, err = GetParamOr(params, "missing", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	// Unparseable values are errors.
	_, err = GetParamOr(params, "bad", 0)
	assert.Error(t, err)
	_, err = GetParamOr(params, "bad", false)
	assert.Error(t, err)
}

func TestPopParamOr(t *testing.T) {
	params := NewFromConfigString("a=7")
	got, err := PopParamOr(params, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.NotContains(t, params, "a")

	// A failed parse does not consume the key.
	params = NewFromConfigString("a=xyz")
	_, err = PopParamOr(params, "a", 0)
	assert.Error(t, err)
	assert.Contains(t, params, "a")
}

func TestApply(t *testing.T) {
	cfg := config.Default()
	params := NewFromConfigString(
		"n_labels=64,cnn_filter_num=32,res_layer_num=2,l2_reg=0.01,distributed,unknown_key=1")
	require.NoError(t, Apply(params, cfg))

	assert.Equal(t, 64, cfg.NLabels)
	assert.Equal(t, 32, cfg.Model.CnnFilterNum)
	assert.Equal(t, 2, cfg.Model.ResLayerNum)
	assert.Equal(t, 0.01, cfg.Model.L2Reg)
	assert.True(t, cfg.Model.Distributed)

	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Model.CnnFilterSize)
	assert.Equal(t, 256, cfg.Model.ValueFCSize)

	// Recognized keys are consumed, unrecognized ones stay for the caller.
	assert.Equal(t, Params{"unknown_key": "1"}, params)
}

func TestApplyBadValue(t *testing.T) {
	cfg := config.Default()
	err := Apply(NewFromConfigString("res_layer_num=seven"), cfg)
	assert.Error(t, err)
}
