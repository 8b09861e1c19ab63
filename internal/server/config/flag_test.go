package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-x", "http://aspace:8089", "-n", "archivist", "-w", "pw", "-r", "3", "-t", "5", "-j", "4",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-o", "zap", "-l", "debug",
			},
			expected: &Config{
				EndpointAddrHTTP:       "127.0.0.1:9090",
				DatabaseDSN:            "db",
				EditorSecret:           "secret",
				ASpaceBaseURL:          "http://aspace:8089",
				ASpaceUsername:         "archivist",
				ASpacePassword:         "pw",
				ASpaceRepoID:           3,
				ExternalTimeout:        5 * time.Second,
				PropagationConcurrency: 4,
				S3RootUser:             "user",
				S3RootPassword:         "password",
				S3Bucket:               "bucket",
				S3Region:               "us-west-1",
				S3BaseEndpoint:         "http://endpoint",
				LogBackend:             "zap",
				LogLevel:               "debug",
			},
		},
		{
			name:     "foreign flags ignored",
			args:     []string{"cmd", "-c", "cfg.json", "-z", "1", "-a", ":1"},
			expected: &Config{EndpointAddrHTTP: ":1"},
		},
		{
			name:        "bad integer",
			args:        []string{"cmd", "-r", "two"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_TimeoutKeptWhenFlagAbsent(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-a", ":8000"}

	config := &Config{}
	config.LoadDefaults()
	config.ExternalTimeout = 500 * time.Millisecond

	parseFlags(config)

	assert.Equal(t, 500*time.Millisecond, config.ExternalTimeout)
}

func TestParseFlags_NonPositiveTimeoutRejected(t *testing.T) {
	for _, v := range []string{"0", "-3"} {
		t.Run(v, func(t *testing.T) {
			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = []string{"cmd", "-t", v}

			config := &Config{ExternalTimeout: 30 * time.Second}
			require.Panics(t, func() { parseFlags(config) })
		})
	}
}
