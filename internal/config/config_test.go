package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "")
	t.Setenv("PHONE_NUMBER_ID", "")
	t.Setenv("ACCESS_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://graph.facebook.com", cfg.GraphAPIURL)
	assert.Equal(t, "v12.0", cfg.GraphAPIVersion)
	assert.Equal(t, 15*time.Second, cfg.SendTimeout)
	assert.EqualValues(t, 16, cfg.MaxConcurrentSends)
	assert.Equal(t, []string{"WEBHOOK_VERIFY_TOKEN", "PHONE_NUMBER_ID", "ACCESS_TOKEN"}, cfg.Missing())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "secret")
	t.Setenv("PHONE_NUMBER_ID", "12345")
	t.Setenv("ACCESS_TOKEN", "token")
	t.Setenv("GRAPH_API_VERSION", "v21.0")
	t.Setenv("SEND_TIMEOUT", "3s")
	t.Setenv("SEND_RATE_PER_SECOND", "0")
	t.Setenv("DELIVERY_LOG_TOKEN", "reader-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "secret", cfg.VerifyToken)
	assert.Equal(t, "12345", cfg.PhoneNumberID)
	assert.Equal(t, "token", cfg.AccessToken)
	assert.Equal(t, "v21.0", cfg.GraphAPIVersion)
	assert.Equal(t, 3*time.Second, cfg.SendTimeout)
	assert.Zero(t, cfg.SendRatePerSecond)
	assert.Equal(t, "reader-token", cfg.DeliveryLogToken)
	assert.Empty(t, cfg.Missing())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("zero concurrency", func(t *testing.T) {
		t.Setenv("MAX_CONCURRENT_SENDS", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MAX_CONCURRENT_SENDS")
	})

	t.Run("negative rate", func(t *testing.T) {
		t.Setenv("SEND_RATE_PER_SECOND", "-1")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SEND_RATE_PER_SECOND")
	})

	t.Run("unparsable duration", func(t *testing.T) {
		t.Setenv("SEND_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})
}
