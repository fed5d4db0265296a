// Package parallel provides bounded parallel loops for CPU kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig sizes the pool from the physical core count reported by
// cpuid, falling back to runtime.NumCPU when detection fails.
func DefaultConfig() Config {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	n = min(n, runtime.GOMAXPROCS(0))
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Coarse returns a copy of cfg suited to loops whose iterations are
// individually expensive (one image plane, one output channel).
func (cfg Config) Coarse() Config {
	cfg.MinChunkSize = 1
	return cfg
}

// For executes f(i) for i in [0, n). Each index is visited exactly once;
// callers must only write to disjoint memory per index.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates the batch*channels plane pattern common in CNN kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}

// Describe returns a short description of the host CPU for logs.
func Describe() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	simd := "scalar"
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		simd = "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2):
		simd = "avx2"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		simd = "neon"
	}
	return brand + " (" + simd + ")"
}
