package config

import (
	"encoding/json"
	"os"

	"github.com/relativit/relativit/internal/flagx"
	"github.com/relativit/relativit/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Interval fields use timex.Duration, which accepts both string values such
// as "15m" and integer nanoseconds. After unmarshalling, fields are copied
// into the runtime Config.
type JsonConfig struct {
	EndpointAddr                 *string         `json:"endpoint_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	JWTSecret                    *string         `json:"jwt_secret"`
	EncryptionKey                *string         `json:"encryption_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	TrialAPIKey                  *string         `json:"trial_api_key"`
	TrialAPIProvider             *string         `json:"trial_api_provider"`
	TrialUnitPrice               *float64        `json:"trial_unit_price"`
	TrialStartCredits            *float64        `json:"trial_start_credits"`
	DemoVerificationCode         *string         `json:"demo_verification_code"`
	ProviderCallTimeout          *timex.Duration `json:"provider_call_timeout"`
	AuditSink                    *string         `json:"audit_sink"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. Absent JSON fields leave
// the corresponding Config values untouched. An unreadable or invalid file
// panics: starting with half-applied configuration is worse than not
// starting.
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

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.EncryptionKey, c.EncryptionKey)
	setString(&config.TrialAPIKey, c.TrialAPIKey)
	setString(&config.TrialAPIProvider, c.TrialAPIProvider)
	setString(&config.DemoVerificationCode, c.DemoVerificationCode)
	setString(&config.AuditSink, c.AuditSink)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.ProviderCallTimeout != nil {
		config.ProviderCallTimeout = c.ProviderCallTimeout.Duration
	}
	if c.TrialUnitPrice != nil {
		config.TrialUnitPrice = *c.TrialUnitPrice
	}
	if c.TrialStartCredits != nil {
		config.TrialStartCredits = *c.TrialStartCredits
	}
}
