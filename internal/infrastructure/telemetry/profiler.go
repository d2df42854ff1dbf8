package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling settings.
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string // e.g. "http://pyroscope:4040"
	ApplicationName string

	// Basic auth, needed for Grafana Cloud.
	BasicAuthUser     string
	BasicAuthPassword string

	ProfileCPU           bool
	ProfileAllocObjects  bool
	ProfileAllocSpace    bool
	ProfileInuseObjects  bool
	ProfileInuseSpace    bool
	ProfileGoroutines    bool
	ProfileMutexCount    bool
	ProfileMutexDuration bool
	ProfileBlockCount    bool
	ProfileBlockDuration bool

	MutexProfileFraction int // defaults to 5 when mutex profiling is on
	BlockProfileRate     int // defaults to 5 when block profiling is on
	DisableGCRuns        bool
}

// Profiler manages the Pyroscope session. Disabled configs produce a
// no-op instance so shutdown paths stay uniform.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	config   ProfilerConfig

	mu      sync.Mutex
	stopped bool
}

// NewProfiler starts continuous profiling against the configured
// Pyroscope server.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger, config: cfg}

	if !cfg.Enabled {
		logger.Info("continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler application name is required when profiling is enabled")
	}

	// Mutex and block profiles need runtime collection switched on.
	if cfg.ProfileMutexCount || cfg.ProfileMutexDuration {
		runtime.SetMutexProfileFraction(defaultRate(cfg.MutexProfileFraction))
	}
	if cfg.ProfileBlockCount || cfg.ProfileBlockDuration {
		runtime.SetBlockProfileRate(defaultRate(cfg.BlockProfileRate))
	}

	types := cfg.profileTypes()
	if len(types) == 0 {
		logger.Warn("no profile types enabled, profiler will collect nothing")
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            pyroscopeZapAdapter{logger.Named("pyroscope").Sugar()},
		Tags:              hostTags(),
		ProfileTypes:      types,
		DisableGCRuns:     cfg.DisableGCRuns,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope profiler: %w", err)
	}
	p.profiler = session

	logger.Info("pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

func defaultRate(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}

// hostTags labels profiles with the host identity when the scheduler
// exposes it.
func hostTags() map[string]string {
	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}
	return tags
}

func (cfg ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	var types []pyroscope.ProfileType
	add := func(on bool, t pyroscope.ProfileType) {
		if on {
			types = append(types, t)
		}
	}
	add(cfg.ProfileCPU, pyroscope.ProfileCPU)
	add(cfg.ProfileAllocObjects, pyroscope.ProfileAllocObjects)
	add(cfg.ProfileAllocSpace, pyroscope.ProfileAllocSpace)
	add(cfg.ProfileInuseObjects, pyroscope.ProfileInuseObjects)
	add(cfg.ProfileInuseSpace, pyroscope.ProfileInuseSpace)
	add(cfg.ProfileGoroutines, pyroscope.ProfileGoroutines)
	add(cfg.ProfileMutexCount, pyroscope.ProfileMutexCount)
	add(cfg.ProfileMutexDuration, pyroscope.ProfileMutexDuration)
	add(cfg.ProfileBlockCount, pyroscope.ProfileBlockCount)
	add(cfg.ProfileBlockDuration, pyroscope.ProfileBlockDuration)
	return types
}

// Stop flushes pending profiles and ends the session. Safe to call
// more than once. The Pyroscope SDK has no context-aware shutdown; it
// relies on its own internal timeouts.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	if p.profiler == nil {
		return nil
	}
	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("stop profiler: %w", err)
	}
	p.logger.Info("pyroscope profiler stopped")
	return nil
}

// IsEnabled reports whether a profiling session is running.
func (p *Profiler) IsEnabled() bool {
	return p.config.Enabled && p.profiler != nil
}

// GetConfig returns a copy of the profiler configuration.
func (p *Profiler) GetConfig() ProfilerConfig {
	return p.config
}

// pyroscopeZapAdapter satisfies pyroscope.Logger on top of zap.
type pyroscopeZapAdapter struct {
	sugar *zap.SugaredLogger
}

func (l pyroscopeZapAdapter) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l pyroscopeZapAdapter) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

func (l pyroscopeZapAdapter) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}
