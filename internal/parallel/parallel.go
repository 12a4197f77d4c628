// Package parallel runs independent loop iterations on several goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a loop is split.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs sequentially.
	MinChunk int // Minimum iterations per goroutine.
}

// DefaultConfig uses one goroutine per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), MinChunk: 1}
}

// For calls f(i) for i in [0, n). Iterations are split in contiguous chunks,
// one goroutine per chunk. It returns the error of the lowest failing index;
// other iterations of a failing chunk are skipped.
func For(n int, cfg Config, f func(i int) error) error {
	if n <= 0 {
		return nil
	}
	minChunk := max(cfg.MinChunk, 1)
	if cfg.Workers <= 1 || n <= minChunk {
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, minChunk)
	chunks := (n + chunk - 1) / chunk
	errs := make([]error, chunks)

	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		start, end := c*chunk, min((c+1)*chunk, n)
		wg.Add(1)
		go func(c, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if err := f(i); err != nil {
					errs[c] = err
					return
				}
			}
		}(c, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
