package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/abrahampo1/cryptogest-sub001/internal/flagx"
	"github.com/abrahampo1/cryptogest-sub001/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	DataRoot         string         `json:"data_root"`
	CloudEndpoint    string         `json:"cloud_endpoint"`
	RequestTimeout   timex.Duration `json:"request_timeout"`
	ProgressInterval timex.Duration `json:"progress_interval"`
}

// parseJson overlays cfg with values loaded from the JSON file given via the
// -c/-config flags. Empty JSON fields leave the current value untouched.
// Read or unmarshal errors panic; LoadConfig runs before any vault is
// touched, so failing loudly is safe.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataRoot != "" {
		cfg.DataRoot = jc.DataRoot
	}
	if jc.CloudEndpoint != "" {
		cfg.CloudEndpoint = jc.CloudEndpoint
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.ProgressInterval.Duration != 0 {
		cfg.ProgressInterval = time.Duration(jc.ProgressInterval.Duration)
	}
}
