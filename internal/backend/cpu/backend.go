// Package cpu implements the CPU backend. Dense products go through gonum's
// BLAS; per-plane kernels are spread over cores with internal/parallel.
package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/parallel"
	"github.com/born-ml/digitnet/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a CPU backend using parallel.DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Describe returns the backend name together with host CPU details.
func (cpu *CPUBackend) Describe() string {
	return fmt.Sprintf("%s [%s, %d workers]", cpu.Name(), parallel.Describe(), cpu.par.NumWorkers)
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (float32 required)", op, t.DType()))
		}
	}
}
