package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "15m" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP                   string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                   string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                        string         `json:"database_dsn"`
	LogLevel                           string         `json:"log_level"`
	AccessTokenSecret                  string         `json:"access_token_secret"`
	RefreshTokenSecret                 string         `json:"refresh_token_secret"`
	TokenIssuer                        string         `json:"token_issuer"`
	AccessTokenValidityDuration        timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration       timex.Duration `json:"refresh_token_validity_duration"`
	PasswordResetTokenValidityDuration timex.Duration `json:"password_reset_token_validity_duration"`
	EmailVerifyTokenValidityDuration   timex.Duration `json:"email_verify_token_validity_duration"`
	BcryptCost                         int            `json:"bcrypt_cost"`
	SweepInterval                      timex.Duration `json:"sweep_interval"`
	SecureCookies                      *bool          `json:"secure_cookies"`
	Notifier                           string         `json:"notifier"`
	KafkaBrokers                       []string       `json:"kafka_brokers"`
	KafkaTopic                         string         `json:"kafka_topic"`
	MailFrom                           string         `json:"mail_from"`
	AppBaseURL                         string         `json:"app_base_url"`
	SESRegion                          string         `json:"ses_region"`
	SESAccessKeyID                     string         `json:"ses_access_key_id"`
	SESSecretAccessKey                 string         `json:"ses_secret_access_key"`
	SESBaseEndpoint                    string         `json:"ses_base_endpoint"`
}

// parseJson loads the file named by -c / -config, if any, and copies every
// field that is present (non-zero) into config. A missing or malformed file
// panics: the operator asked for it explicitly.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.PasswordResetTokenValidityDuration, c.PasswordResetTokenValidityDuration)
	setDuration(&config.EmailVerifyTokenValidityDuration, c.EmailVerifyTokenValidityDuration)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	setDuration(&config.SweepInterval, c.SweepInterval)
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	setString(&config.Notifier, c.Notifier)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.AppBaseURL, c.AppBaseURL)
	setString(&config.SESRegion, c.SESRegion)
	setString(&config.SESAccessKeyID, c.SESAccessKeyID)
	setString(&config.SESSecretAccessKey, c.SESSecretAccessKey)
	setString(&config.SESBaseEndpoint, c.SESBaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
