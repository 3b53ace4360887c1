package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/blindauth/internal/flagx"
	"github.com/dmitrijs2005/blindauth/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for JSON and YAML files. Durations accept both
// strings such as "15m" and integer nanoseconds. Omitted keys leave the
// current value untouched.
type FileConfig struct {
	EndpointAddrGRPC                  string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP                  string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                       string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                         string         `json:"secret_key" yaml:"secret_key"`
	Issuer                            string         `json:"issuer" yaml:"issuer"`
	Audience                          string         `json:"audience" yaml:"audience"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration" yaml:"verification_token_validity_duration"`
	ResendCooldown                    timex.Duration `json:"resend_cooldown" yaml:"resend_cooldown"`
	VerificationBaseURL               string         `json:"verification_base_url" yaml:"verification_base_url"`
	Notifier                          string         `json:"notifier" yaml:"notifier"`
	S3RootUser                        string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword                    string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                          string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                          string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint                    string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	NATSURL                           string         `json:"nats_url" yaml:"nats_url"`
	NATSSubject                       string         `json:"nats_subject" yaml:"nats_subject"`
	RedisAddr                         string         `json:"redis_addr" yaml:"redis_addr"`
	LoginAttemptLimit                 int            `json:"login_attempt_limit" yaml:"login_attempt_limit"`
	LoginAttemptWindow                timex.Duration `json:"login_attempt_window" yaml:"login_attempt_window"`
	OTLPEndpoint                      string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	LogLevel                          string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays values from the file named by -c/-config. Files ending
// in .yaml or .yml are decoded as YAML, anything else as JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *FileConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.VerificationBaseURL, c.VerificationBaseURL)
	setString(&config.Notifier, c.Notifier)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.NATSURL, c.NATSURL)
	setString(&config.NATSSubject, c.NATSSubject)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.VerificationTokenValidityDuration.Duration != 0 {
		config.VerificationTokenValidityDuration = c.VerificationTokenValidityDuration.Duration
	}
	if c.ResendCooldown.Duration != 0 {
		config.ResendCooldown = c.ResendCooldown.Duration
	}
	if c.LoginAttemptWindow.Duration != 0 {
		config.LoginAttemptWindow = c.LoginAttemptWindow.Duration
	}
	if c.LoginAttemptLimit != 0 {
		config.LoginAttemptLimit = c.LoginAttemptLimit
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
