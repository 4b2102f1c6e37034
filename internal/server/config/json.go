package config

import (
	"encoding/json"
	"os"

	"sharegate/internal/flagx"
	"sharegate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "5m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP          string         `json:"endpoint_addr_http"`
	DatabaseDSN               string         `json:"database_dsn"`
	SecretKey                 string         `json:"secret_key"`
	SessionValidityDuration   timex.Duration `json:"session_validity_duration"`
	LocatorValidityDuration   timex.Duration `json:"locator_validity_duration"`
	ChallengeValidityDuration timex.Duration `json:"challenge_validity_duration"`
	DefaultShareValidity      timex.Duration `json:"default_share_validity"`
	DefaultMaxDownloads       int            `json:"default_max_downloads"`
	DefaultQuotaBytes         int64          `json:"default_quota_bytes"`
	S3RootUser                string         `json:"s3_root_user"`
	S3RootPassword            string         `json:"s3_root_password"`
	S3Bucket                  string         `json:"s3_bucket"`
	S3Region                  string         `json:"s3_region"`
	S3BaseEndpoint            string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. A file that cannot be
// read or parsed panics, since running with half-applied config is worse
// than not starting.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := &JsonConfig{}
	if err := json.Unmarshal(data, jc); err != nil {
		panic(err)
	}

	if jc.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = jc.EndpointAddrHTTP
	}
	if jc.DatabaseDSN != "" {
		config.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SecretKey != "" {
		config.SecretKey = jc.SecretKey
	}
	if jc.SessionValidityDuration.Duration != 0 {
		config.SessionValidityDuration = jc.SessionValidityDuration.Duration
	}
	if jc.LocatorValidityDuration.Duration != 0 {
		config.LocatorValidityDuration = jc.LocatorValidityDuration.Duration
	}
	if jc.ChallengeValidityDuration.Duration != 0 {
		config.ChallengeValidityDuration = jc.ChallengeValidityDuration.Duration
	}
	if jc.DefaultShareValidity.Duration != 0 {
		config.DefaultShareValidity = jc.DefaultShareValidity.Duration
	}
	if jc.DefaultMaxDownloads != 0 {
		config.DefaultMaxDownloads = jc.DefaultMaxDownloads
	}
	if jc.DefaultQuotaBytes != 0 {
		config.DefaultQuotaBytes = jc.DefaultQuotaBytes
	}
	if jc.S3RootUser != "" {
		config.S3RootUser = jc.S3RootUser
	}
	if jc.S3RootPassword != "" {
		config.S3RootPassword = jc.S3RootPassword
	}
	if jc.S3Bucket != "" {
		config.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		config.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = jc.S3BaseEndpoint
	}
}
