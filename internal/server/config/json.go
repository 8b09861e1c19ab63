package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cartographer/internal/flagx"
	"github.com/dmitrijs2005/cartographer/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations accept "30s" as well
// as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP       string         `json:"endpoint_addr_http"`
	DatabaseDSN            string         `json:"database_dsn"`
	ASpaceBaseURL          string         `json:"aspace_base_url"`
	ASpaceUsername         string         `json:"aspace_username"`
	ASpacePassword         string         `json:"aspace_password"`
	ASpaceRepoID           int            `json:"aspace_repo_id"`
	ExternalTimeout        timex.Duration `json:"external_timeout"`
	PropagationConcurrency int            `json:"propagation_concurrency"`
	EditorSecret           string         `json:"editor_secret"`
	S3RootUser             string         `json:"s3_root_user"`
	S3RootPassword         string         `json:"s3_root_password"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Region               string         `json:"s3_region"`
	S3BaseEndpoint         string         `json:"s3_base_endpoint"`
	LogBackend             string         `json:"log_backend"`
	LogLevel               string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. An unreadable or invalid file
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	// seed with current values so missing keys are left alone
	c := &JsonConfig{
		EndpointAddrHTTP:       config.EndpointAddrHTTP,
		DatabaseDSN:            config.DatabaseDSN,
		ASpaceBaseURL:          config.ASpaceBaseURL,
		ASpaceUsername:         config.ASpaceUsername,
		ASpacePassword:         config.ASpacePassword,
		ASpaceRepoID:           config.ASpaceRepoID,
		ExternalTimeout:        timex.Duration{Duration: config.ExternalTimeout},
		PropagationConcurrency: config.PropagationConcurrency,
		EditorSecret:           config.EditorSecret,
		S3RootUser:             config.S3RootUser,
		S3RootPassword:         config.S3RootPassword,
		S3Bucket:               config.S3Bucket,
		S3Region:               config.S3Region,
		S3BaseEndpoint:         config.S3BaseEndpoint,
		LogBackend:             config.LogBackend,
		LogLevel:               config.LogLevel,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.ASpaceBaseURL = c.ASpaceBaseURL
	config.ASpaceUsername = c.ASpaceUsername
	config.ASpacePassword = c.ASpacePassword
	config.ASpaceRepoID = c.ASpaceRepoID
	config.ExternalTimeout = c.ExternalTimeout.Duration
	config.PropagationConcurrency = c.PropagationConcurrency
	config.EditorSecret = c.EditorSecret
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.LogBackend = c.LogBackend
	config.LogLevel = c.LogLevel
}
