package main

import (
	"testing"

	"github.com/mrpayong/terual-accounting/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		cfg := &config.Config{Observability: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"}}

		logger, err := initLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		cfg := &config.Config{Observability: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}}

		logger, err := initLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("unknown level rejected", func(t *testing.T) {
		cfg := &config.Config{Observability: config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"}}

		logger, err := initLogger(cfg)
		assert.Error(t, err)
		assert.Nil(t, logger)
	})
}
