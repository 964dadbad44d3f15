package config

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// duration lets JSON specify intervals either as strings like "3s" or as
// integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Zero values
// mean "not set" and leave the corresponding Config field untouched.
type jsonConfig struct {
	APIBaseURL     string   `json:"api_base_url"`
	FactoryAPIURL  string   `json:"factory_api_url"`
	DataDir        string   `json:"data_dir"`
	AuthFilePath   string   `json:"auth_file_path"`
	CommKeyHex     string   `json:"comm_key"`
	StorageSaltHex string   `json:"storage_salt"`
	DeviceSaltHex  string   `json:"device_salt"`
	RequestTimeout duration `json:"request_timeout"`
	ConnectTimeout duration `json:"connect_timeout"`
	RetryAttempts  int      `json:"retry_attempts"`
	RetryDelay     duration `json:"retry_delay"`
	HeartbeatMin   duration `json:"heartbeat_min"`
	HeartbeatMax   duration `json:"heartbeat_max"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// the -c/-config flags. Missing flag means no JSON is loaded. Read or
// unmarshal errors panic (caller should recover if desired), matching the
// fail-fast behavior of flag parsing.
func parseJson(cfg *Config) {
	jsonConfigFile := jsonConfigFlag(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc jsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	applyJson(cfg, &jc)
}

func applyJson(cfg *Config, jc *jsonConfig) {
	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.FactoryAPIURL != "" {
		cfg.FactoryAPIURL = jc.FactoryAPIURL
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.AuthFilePath != "" {
		cfg.AuthFilePath = jc.AuthFilePath
	}
	if jc.CommKeyHex != "" {
		cfg.CommKeyHex = jc.CommKeyHex
	}
	if jc.StorageSaltHex != "" {
		cfg.StorageSaltHex = jc.StorageSaltHex
	}
	if jc.DeviceSaltHex != "" {
		cfg.DeviceSaltHex = jc.DeviceSaltHex
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.ConnectTimeout.Duration != 0 {
		cfg.ConnectTimeout = jc.ConnectTimeout.Duration
	}
	if jc.RetryAttempts != 0 {
		cfg.RetryAttempts = jc.RetryAttempts
	}
	if jc.RetryDelay.Duration != 0 {
		cfg.RetryDelay = jc.RetryDelay.Duration
	}
	if jc.HeartbeatMin.Duration != 0 {
		cfg.HeartbeatMin = jc.HeartbeatMin.Duration
	}
	if jc.HeartbeatMax.Duration != 0 {
		cfg.HeartbeatMax = jc.HeartbeatMax.Duration
	}
}

// jsonConfigFlag extracts the config file path from -c/-config without
// consuming the remaining flags, which are parsed separately. The scan is
// manual so flags belonging to other parsers are skipped.
func jsonConfigFlag(args []string) string {
	var path string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "-config", "--c", "--config":
			if i+1 < len(args) {
				path = args[i+1]
			}
		}
	}
	return path
}
