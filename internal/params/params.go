// Package params parses user-provided configuration strings of the form
// "key=value,key2=value2,..." and applies them as overrides on top of a
// config.Config. It is the command-line counterpart of the JSON config file.
package params

import (
	"strconv"
	"strings"

	"github.com/chesszero/chesszero/internal/config"
	"github.com/pkg/errors"
)

// Params represent generic configuration parameters.
type Params map[string]string

// NewFromConfigString creates params from the user's configuration string.
// A key without "=" is stored with an empty value, which bool parsing
// interprets as true.
func NewFromConfigString(cfgStr string) Params {
	params := make(Params)
	if cfgStr == "" {
		return params
	}
	for _, part := range strings.Split(cfgStr, ",") {
		subParts := strings.SplitN(part, "=", 2)
		if len(subParts) == 1 {
			params[subParts[0]] = ""
		} else {
			params[subParts[0]] = subParts[1]
		}
	}
	return params
}

// PopParamOr is like GetParamOr, but it also deletes the retrieved parameter
// from the params map.
func PopParamOr[T interface {
	bool | int | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key is
// present, or returns defaultValue if not.
//
// For bool types, a key without a value is interpreted as true.
func GetParamOr[T interface {
	bool | int | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, exists := params[key]
	if !exists {
		return defaultValue, nil
	}
	var t T
	toT := func(v any) T { return v.(T) }
	switch (any)(defaultValue).(type) {
	case string:
		return toT(value), nil
	case int:
		if value == "" {
			return defaultValue, nil
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int", key, value)
		}
		return toT(parsed), nil
	case float64:
		if value == "" {
			return defaultValue, nil
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
		}
		return toT(parsed), nil
	case bool:
		lower := strings.ToLower(value)
		if value == "" || lower == "true" || value == "1" {
			return toT(true), nil
		}
		if lower == "false" || value == "0" {
			return toT(false), nil
		}
		return defaultValue, errors.Errorf("failed to parse configuration %s=%q to bool", key, value)
	}
	return defaultValue, nil
}

// Apply overrides cfg in place from the params map, popping every key it
// recognizes. Unrecognized keys are left in params for the caller to reject.
func Apply(params Params, cfg *config.Config) error {
	var err error
	pop := func(dst *int, key string) {
		if err != nil {
			return
		}
		*dst, err = PopParamOr(params, key, *dst)
	}
	pop(&cfg.NLabels, "n_labels")
	pop(&cfg.Model.CnnFilterNum, "cnn_filter_num")
	pop(&cfg.Model.CnnFirstFilterSize, "cnn_first_filter_size")
	pop(&cfg.Model.CnnFilterSize, "cnn_filter_size")
	pop(&cfg.Model.ResLayerNum, "res_layer_num")
	pop(&cfg.Model.ValueFCSize, "value_fc_size")
	pop(&cfg.Model.BatchSize, "batch_size")
	if err != nil {
		return err
	}
	if cfg.Model.L2Reg, err = PopParamOr(params, "l2_reg", cfg.Model.L2Reg); err != nil {
		return err
	}
	if cfg.Model.Distributed, err = PopParamOr(params, "distributed", cfg.Model.Distributed); err != nil {
		return err
	}
	return nil
}
