package middleware

import (
	"fmt"
	"sync"

	"github.com/grafana/pyroscope-go"

	"github.com/duynhne/session-gateway/config"
)

var (
	profilerMu sync.Mutex
	profiler   *pyroscope.Profiler
)

// InitProfiling starts continuous profiling against the configured Pyroscope
// server. StopProfiling flushes and stops it.
func InitProfiling(cfg *config.Config) error {
	profilerMu.Lock()
	defer profilerMu.Unlock()

	if profiler != nil {
		return nil
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Service.Name,
		ServerAddress:   cfg.Profiling.Endpoint,
		Tags: map[string]string{
			"env":     cfg.Service.Env,
			"version": cfg.Service.Version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return fmt.Errorf("start pyroscope: %w", err)
	}
	profiler = p
	return nil
}

// StopProfiling stops the profiler started by InitProfiling, if any.
func StopProfiling() {
	profilerMu.Lock()
	defer profilerMu.Unlock()

	if profiler != nil {
		_ = profiler.Stop()
		profiler = nil
	}
}
