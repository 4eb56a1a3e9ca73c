package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	require.Equal(t, "local", cfg.StorageMode)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.ReconcileInterval)
	require.Equal(t, 10*time.Minute, cfg.ExpirySweepInterval)
	require.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_MODE", "s3")
	t.Setenv("RECONCILE_INTERVAL", "5m")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "90")

	cfg := config.Load()

	require.True(t, cfg.IsProduction())
	require.Equal(t, "s3", cfg.StorageMode)
	require.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	require.Equal(t, 90*time.Second, cfg.ExpirySweepInterval, "bare numbers are seconds")
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("RECONCILE_INTERVAL", "soon")

	cfg := config.Load()
	require.Equal(t, 30*time.Minute, cfg.ReconcileInterval)
}
