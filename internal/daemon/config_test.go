package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.RequestTimeout, time.Duration(0))
	assert.Greater(t, cfg.ShutdownGrace, time.Duration(0))
	assert.Greater(t, cfg.MaxConcurrentRequests, 0)
	assert.Greater(t, cfg.MaxFrameBytes, 0)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr bool
	}{
		{
			name:    "valid default",
			mutate:  func(c Config) Config { return c },
			wantErr: false,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c Config) Config { c.RequestTimeout = 0; return c },
			wantErr: true,
		},
		{
			name:    "zero shutdown grace",
			mutate:  func(c Config) Config { c.ShutdownGrace = 0; return c },
			wantErr: true,
		},
		{
			name:    "zero max concurrent requests",
			mutate:  func(c Config) Config { c.MaxConcurrentRequests = 0; return c },
			wantErr: true,
		},
		{
			name:    "zero max frame bytes",
			mutate:  func(c Config) Config { c.MaxFrameBytes = 0; return c },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.mutate(DefaultConfig())
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
