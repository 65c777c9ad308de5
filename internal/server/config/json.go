package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mvrcrypto/customapi/internal/flagx"
	"github.com/mvrcrypto/customapi/internal/timex"
)

// JsonConfig is the DTO used for reading JSON configuration files. Interval
// fields use timex.Duration, which accepts both string values such as "24h"
// and integer nanoseconds. After unmarshalling, its fields are copied into
// the runtime Config.
type JsonConfig struct {
	DatabaseDSN               string         `json:"database_dsn"`
	TokenValidityDuration     timex.Duration `json:"token_validity_duration"`
	RequestTimeoutDuration    timex.Duration `json:"request_timeout_duration"`
	FederationTimeoutDuration timex.Duration `json:"federation_timeout_duration"`
	PresignValidityDuration   timex.Duration `json:"presign_validity_duration"`
	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If neither flag is set, nothing
// is loaded. An unreadable or invalid file panics: a half-applied config is
// worse than a refused start.
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

	config.DatabaseDSN = c.DatabaseDSN
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	config.RequestTimeoutDuration = time.Duration(c.RequestTimeoutDuration.Duration)
	config.FederationTimeoutDuration = time.Duration(c.FederationTimeoutDuration.Duration)
	config.PresignValidityDuration = time.Duration(c.PresignValidityDuration.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
