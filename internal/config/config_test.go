package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1968, cfg.NLabels)
	assert.Equal(t, 256, cfg.Model.CnnFilterNum)
	assert.Equal(t, 5, cfg.Model.CnnFirstFilterSize)
	assert.Equal(t, 3, cfg.Model.CnnFilterSize)
	assert.Equal(t, 7, cfg.Model.ResLayerNum)
	assert.Equal(t, 1e-4, cfg.Model.L2Reg)
	assert.Equal(t, 256, cfg.Model.ValueFCSize)
	assert.False(t, cfg.Model.Distributed)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.NLabels = 100
	cfg.Model.Distributed = true
	cfg.Resource.FTPServer = "ftp.example.com"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// Partial files override only what they mention; everything else stays at
// its default.
func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model": {"res_layer_num": 3}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Model.ResLayerNum)
	assert.Equal(t, 1968, cfg.NLabels)
	assert.Equal(t, 256, cfg.Model.CnnFilterNum)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestIsBestModelSlot(t *testing.T) {
	cfg := Default()
	cfg.Resource.ModelBestConfigPath = "/data/model_best_config.json"
	cfg.Resource.ModelBestWeightPath = "/data/model_best_weight.h5"

	assert.True(t, cfg.IsBestModelSlot("/data/model_best_config.json", "/data/model_best_weight.h5"))
	assert.False(t, cfg.IsBestModelSlot("/data/other_config.json", "/data/model_best_weight.h5"))
	assert.False(t, cfg.IsBestModelSlot("/data/model_best_config.json", "/data/other_weight.h5"))
}
