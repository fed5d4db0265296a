package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/digitnet/internal/tensor"
)

// StateDict returns a map of parameter names to raw tensors.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict copies tensors from stateDict into params.
//
// The name sets must match exactly and every tensor must have the
// parameter's shape and float32 dtype. On error no parameter is modified.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Name()] = true
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.Name())
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.Name(), p.Tensor().Shape(), raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", p.Name(), raw.DType())
		}
	}

	var unexpected []string
	for name := range stateDict {
		if !known[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected tensors in state dict: %s", strings.Join(unexpected, ", "))
	}

	for _, p := range params {
		copy(p.Tensor().Data(), stateDict[p.Name()].AsFloat32())
	}
	return nil
}
