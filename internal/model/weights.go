package model

import (
	"encoding/gob"
	"os"
	"sort"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// The weight artifact is a gob stream: a record count followed by
// (scope, name) headers each followed by the variable's tensor. Records are
// sorted by scope then name so identical contexts always serialize to
// identical bytes, which keeps the digest stable.
type weightRecord struct {
	Scope, Name string
}

// saveWeights writes every context variable, trainable or not (batch-norm
// moving statistics included), to the weight artifact at path.
func saveWeights(ctx *context.Context, path string) error {
	type entry struct {
		record weightRecord
		tensor *tensors.Tensor
	}
	var entries []entry
	ctx.EnumerateVariables(func(v *context.Variable) {
		entries = append(entries, entry{weightRecord{v.Scope(), v.Name()}, v.Value()})
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].record.Scope != entries[j].record.Scope {
			return entries[i].record.Scope < entries[j].record.Scope
		}
		return entries[i].record.Name < entries[j].record.Name
	})

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create weight file %s", path)
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(len(entries)); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write weight file %s", path)
	}
	for _, e := range entries {
		if err = enc.Encode(e.record); err == nil {
			err = e.tensor.GobSerialize(enc)
		}
		if err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "failed to write variable %s/%s to %s",
				e.record.Scope, e.record.Name, path)
		}
	}
	return errors.Wrapf(f.Close(), "failed to close weight file %s", path)
}

// loadWeights reads the weight artifact at path into the variables of ctx.
// Every record must match a variable already created by compiling the
// architecture: a mismatch means the artifact does not belong to this
// architecture and is reported as an error.
func loadWeights(ctx *context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open weight file %s", path)
	}
	defer func() { _ = f.Close() }()

	dec := gob.NewDecoder(f)
	var count int
	if err = dec.Decode(&count); err != nil {
		return errors.Wrapf(err, "failed to read weight file %s", path)
	}
	var numVariables int
	ctx.EnumerateVariables(func(*context.Variable) { numVariables++ })
	if count != numVariables {
		// A shortfall would leave variables at their random initialization.
		return errors.Errorf("weight file %s holds %d variables, the architecture has %d",
			path, count, numVariables)
	}
	for ii := 0; ii < count; ii++ {
		var record weightRecord
		if err = dec.Decode(&record); err != nil {
			return errors.Wrapf(err, "failed to read variable header #%d from %s", ii, path)
		}
		tensor, err := tensors.GobDeserialize(dec)
		if err != nil {
			return errors.Wrapf(err, "failed to read variable %s/%s from %s",
				record.Scope, record.Name, path)
		}
		v := ctx.GetVariableByScopeAndName(record.Scope, record.Name)
		if v == nil {
			return errors.Errorf("weight file %s has variable %s/%s not present in the architecture",
				path, record.Scope, record.Name)
		}
		v.SetValue(tensor)
	}
	return nil
}
