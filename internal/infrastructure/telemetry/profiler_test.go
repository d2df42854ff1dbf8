package telemetry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/barterloop/backend/internal/infrastructure/telemetry"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "barterloop-backend",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_ValidatesRequiredFields(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         true,
		ApplicationName: "barterloop-backend",
	}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address is required")

	_, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:       true,
		ServerAddress: "http://localhost:4040",
	}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application name is required")
}

func TestProfiler_StopIdempotent(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestProfiler_StopConcurrent(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Stop()
		}()
	}
	wg.Wait()
}

func TestProfiler_GetConfig(t *testing.T) {
	cfg := telemetry.ProfilerConfig{
		Enabled:           false,
		ServerAddress:     "http://pyroscope:4040",
		ApplicationName:   "barterloop-backend",
		ProfileCPU:        true,
		ProfileInuseSpace: true,
		DisableGCRuns:     true,
	}

	p, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	got := p.GetConfig()
	assert.Equal(t, cfg.ServerAddress, got.ServerAddress)
	assert.Equal(t, cfg.ApplicationName, got.ApplicationName)
	assert.True(t, got.ProfileCPU)
	assert.True(t, got.ProfileInuseSpace)
	assert.True(t, got.DisableGCRuns)
}
