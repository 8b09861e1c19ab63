package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CARTOGRAPHER_DATABASE_DSN.
const EnvPrefix = "CARTOGRAPHER"

// parseEnv overlays CARTOGRAPHER_* environment variables. Keys match the
// JSON file's.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("endpoint_addr_http", &config.EndpointAddrHTTP)
	str("database_dsn", &config.DatabaseDSN)
	str("aspace_base_url", &config.ASpaceBaseURL)
	str("aspace_username", &config.ASpaceUsername)
	str("aspace_password", &config.ASpacePassword)
	str("editor_secret", &config.EditorSecret)
	str("s3_root_user", &config.S3RootUser)
	str("s3_root_password", &config.S3RootPassword)
	str("s3_bucket", &config.S3Bucket)
	str("s3_region", &config.S3Region)
	str("s3_base_endpoint", &config.S3BaseEndpoint)
	str("log_backend", &config.LogBackend)
	str("log_level", &config.LogLevel)

	if v.IsSet("aspace_repo_id") {
		config.ASpaceRepoID = v.GetInt("aspace_repo_id")
	}
	if v.IsSet("propagation_concurrency") {
		config.PropagationConcurrency = v.GetInt("propagation_concurrency")
	}
	if v.IsSet("external_timeout") {
		config.ExternalTimeout = v.GetDuration("external_timeout")
	}
}
