package config

import (
	"encoding/json"
	"os"

	"github.com/paperclip/paperclip/internal/flagx"
	"github.com/paperclip/paperclip/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Duration fields accept
// "24h"-style strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	TokenTTL           timex.Duration `json:"token_ttl"`
	LoginRatePerMinute int            `json:"login_rate_per_minute"`
	LoginBurst         int            `json:"login_burst"`
	HistoryLimit       int            `json:"history_limit"`
	MaxContextChars    int            `json:"max_context_chars"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. No flag means nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}
	c.apply(config)
	return nil
}

func fromConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:           c.HTTPAddr,
		GRPCAddr:           c.GRPCAddr,
		DatabaseDSN:        c.DatabaseDSN,
		SecretKey:          c.SecretKey,
		TokenTTL:           timex.Duration{Duration: c.TokenTTL},
		LoginRatePerMinute: c.LoginRatePerMinute,
		LoginBurst:         c.LoginBurst,
		HistoryLimit:       c.HistoryLimit,
		MaxContextChars:    c.MaxContextChars,
		LogLevel:           c.LogLevel,
		LogFormat:          c.LogFormat,
		S3RootUser:         c.S3RootUser,
		S3RootPassword:     c.S3RootPassword,
		S3Bucket:           c.S3Bucket,
		S3Region:           c.S3Region,
		S3BaseEndpoint:     c.S3BaseEndpoint,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.TokenTTL = j.TokenTTL.Duration
	c.LoginRatePerMinute = j.LoginRatePerMinute
	c.LoginBurst = j.LoginBurst
	c.HistoryLimit = j.HistoryLimit
	c.MaxContextChars = j.MaxContextChars
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
}
