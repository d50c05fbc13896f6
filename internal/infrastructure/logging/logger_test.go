package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"development", DevelopmentConfig(), false},
		{"no output paths", Config{Level: "warn"}, false},
		{"invalid level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
		})
	}
}

func TestFromSettingsFallsBackToNop(t *testing.T) {
	logger := FromSettings("nonsense", false)
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Component("cache").Info("still usable")
	})
}

func TestComponentNamesLogger(t *testing.T) {
	logger := NewDevelopment()
	child := logger.Component("guard")
	assert.NotNil(t, child)
	assert.NoError(t, NewNop().Sync())
}
