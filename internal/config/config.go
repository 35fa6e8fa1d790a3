// Package config holds the static configuration of a chesszero model: the
// architecture hyperparameters, the number of move labels, and the resource
// paths/credentials used for (optionally distributed) model persistence.
//
// A Config is owned by the caller and treated as immutable for the lifetime
// of a model instance.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Config aggregates everything a model instance needs to know.
type Config struct {
	// NLabels is the width of the policy output: one unit per encoded move.
	// The default matches the standard UCI move-label table.
	NLabels int `json:"n_labels"`

	Model    ModelConfig    `json:"model"`
	Resource ResourceConfig `json:"resource"`
}

// ModelConfig carries the architecture hyperparameters of the network.
type ModelConfig struct {
	// CnnFilterNum is the channel width of the stem and of every residual block.
	CnnFilterNum int `json:"cnn_filter_num"`

	// CnnFirstFilterSize is the kernel size of the stem convolution.
	CnnFirstFilterSize int `json:"cnn_first_filter_size"`

	// CnnFilterSize is the kernel size used inside residual blocks.
	CnnFilterSize int `json:"cnn_filter_size"`

	// ResLayerNum is the number of residual blocks in the tower.
	ResLayerNum int `json:"res_layer_num"`

	// L2Reg is the L2 weight-regularization strength applied to all
	// convolution and dense kernels of the residual variant.
	L2Reg float64 `json:"l2_reg"`

	// ValueFCSize is the width of the value head's hidden dense layer.
	ValueFCSize int `json:"value_fc_size"`

	// Distributed enables mirroring of the best-model slot to a remote store.
	Distributed bool `json:"distributed"`

	// BatchSize is the preferred inference batch size of the serving pipes.
	BatchSize int `json:"batch_size"`
}

// ResourceConfig carries local paths for the distinguished "best model" slot
// and the connection parameters of its remote mirror.
type ResourceConfig struct {
	// ModelBestConfigPath and ModelBestWeightPath are the canonical local
	// paths of the best-model artifact pair. Loading or saving exactly this
	// pair triggers remote synchronization when Distributed is set.
	ModelBestConfigPath string `json:"model_best_config_path"`
	ModelBestWeightPath string `json:"model_best_weight_path"`

	// Remote store (FTP) connection parameters.
	FTPServer     string `json:"model_best_distributed_ftp_server"`
	FTPUser       string `json:"model_best_distributed_ftp_user"`
	FTPPassword   string `json:"model_best_distributed_ftp_password"`
	FTPRemotePath string `json:"model_best_distributed_ftp_remote_path"`
}

// Default returns the configuration of the standard distilled-AlphaZero
// chess network: a 7-block tower of 256 filters over 18×8×8 inputs, with a
// 1968-wide policy head.
func Default() *Config {
	return &Config{
		NLabels: 1968,
		Model: ModelConfig{
			CnnFilterNum:       256,
			CnnFirstFilterSize: 5,
			CnnFilterSize:      3,
			ResLayerNum:        7,
			L2Reg:              1e-4,
			ValueFCSize:        256,
			Distributed:        false,
			BatchSize:          16,
		},
		Resource: ResourceConfig{
			ModelBestConfigPath: filepath.Join("data", "model", "model_best_config.json"),
			ModelBestWeightPath: filepath.Join("data", "model", "model_best_weight.h5"),
		},
	}
}

// Load reads a Config from a JSON file, starting from Default so partial
// files only override what they mention.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config from %s", path)
	}
	cfg := Default()
	if err := json.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config from %s", path)
	}
	return cfg, nil
}

// Save writes the Config as indented JSON.
func (c *Config) Save(path string) error {
	contents, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize config")
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}
	return nil
}

// IsBestModelSlot reports whether the given artifact pair is the canonical
// best-model slot, the only one that is ever mirrored remotely.
func (c *Config) IsBestModelSlot(configPath, weightPath string) bool {
	return configPath == c.Resource.ModelBestConfigPath &&
		weightPath == c.Resource.ModelBestWeightPath
}
