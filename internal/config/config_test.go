package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	require.NotEmpty(t, cfg.APIBaseURL)
	require.NotEmpty(t, cfg.DataDir)
	require.NotEmpty(t, cfg.AuthFilePath)
	require.Equal(t, 3, cfg.RetryAttempts)
	require.Equal(t, time.Second, cfg.RetryDelay)
	require.Equal(t, 30*time.Second, cfg.HeartbeatMin)
	require.Equal(t, 90*time.Second, cfg.HeartbeatMax)

	key, err := cfg.CommKey()
	require.NoError(t, err)
	require.Len(t, key, 32)

	_, err = cfg.StorageSalt()
	require.NoError(t, err)
	_, err = cfg.DeviceSalt()
	require.NoError(t, err)
}

func TestApplyJson_OverlaysOnlySetFields(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	defaultURL := cfg.FactoryAPIURL

	var jc jsonConfig
	err := json.Unmarshal([]byte(`{
		"api_base_url": "http://localhost:8080",
		"request_timeout": "5s",
		"retry_attempts": 1
	}`), &jc)
	require.NoError(t, err)

	applyJson(cfg, &jc)

	require.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, 1, cfg.RetryAttempts)
	require.Equal(t, defaultURL, cfg.FactoryAPIURL)
}

func TestDuration_AcceptsStringAndNanoseconds(t *testing.T) {
	var d duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	require.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	require.Equal(t, time.Second, d.Duration)

	require.Error(t, json.Unmarshal([]byte(`true`), &d))
	require.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
}

func TestJsonConfigFlag(t *testing.T) {
	require.Equal(t, "conf.json", jsonConfigFlag([]string{"-a", "http://x", "-c", "conf.json"}))
	require.Equal(t, "conf.json", jsonConfigFlag([]string{"--config", "conf.json"}))
	require.Equal(t, "", jsonConfigFlag([]string{"-a", "http://x"}))
}

func TestFilterArgs(t *testing.T) {
	args := []string{"-c", "conf.json", "-a", "http://x", "-r", "60", "-unknown", "v"}
	got := filterArgs(args, []string{"-a", "-r"})
	require.Equal(t, []string{"-a", "http://x", "-r", "60"}, got)
}
