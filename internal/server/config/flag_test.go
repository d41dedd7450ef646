package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *Config
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8081", "-m", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-t", "30", "-l", "warn", "-u", "user", "-p", "password", "-b", "bucket",
				"-g", "us-west-1", "-e", "http://endpoint",
			},
			expected: &Config{
				HTTPAddr:       "127.0.0.1:8081",
				GRPCAddr:       "127.0.0.1:9090",
				DatabaseDSN:    "db",
				SecretKey:      "secret",
				TokenTTL:       30 * time.Minute,
				LogLevel:       "warn",
				S3RootUser:     "user",
				S3RootPassword: "password",
				S3Bucket:       "bucket",
				S3Region:       "us-west-1",
				S3BaseEndpoint: "http://endpoint",
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"-c", "cfg.json", "-z", "1", "-s", "k"},
			expected: &Config{SecretKey: "k"},
		},
		{
			name:    "bad ttl",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestParseFlags_KeepsSubMinuteTTLWithoutFlag(t *testing.T) {
	cfg := &Config{TokenTTL: 90 * time.Second}
	require.NoError(t, parseFlags(cfg, nil))
	assert.Equal(t, 90*time.Second, cfg.TokenTTL)
}
