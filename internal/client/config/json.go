package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/flagx"
	"github.com/Aphrodine-wq/clipsync/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "10s" and integer nanoseconds. After unmarshalling,
// its fields are copied into the runtime Config struct.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DeviceName         string         `json:"device_name"`
	DeviceType         string         `json:"device_type"`
	DatabaseDSN        string         `json:"database_dsn"`
	MasterKey          string         `json:"master_key"`
	Production         bool           `json:"production"`
	ConnectTimeout     timex.Duration `json:"connect_timeout"`
}

// parseJson loads configuration values from the JSON file referenced by the
// -c or -config command-line flags into the provided Config instance. If
// neither flag is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ServerEndpointAddr = c.ServerEndpointAddr
	config.DeviceName = c.DeviceName
	config.DeviceType = c.DeviceType
	config.DatabaseDSN = c.DatabaseDSN
	config.MasterKey = c.MasterKey
	config.Production = c.Production
	config.ConnectTimeout = time.Duration(c.ConnectTimeout.Duration)
}
