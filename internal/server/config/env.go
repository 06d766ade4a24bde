package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names recognised by parseEnv.
const (
	EnvHTTPAddr           = "HTTP_ADDR"
	EnvGRPCAddr           = "GRPC_ADDR"
	EnvDatabaseDSN        = "DATABASE_DSN"
	EnvLogLevel           = "LOG_LEVEL"
	EnvAccessSecret       = "JWT_ACCESS_SECRET"
	EnvRefreshSecret      = "JWT_REFRESH_SECRET"
	EnvTokenIssuer        = "JWT_ISSUER"
	EnvAccessTTL          = "ACCESS_TOKEN_TTL"
	EnvRefreshTTL         = "REFRESH_TOKEN_TTL"
	EnvPasswordResetTTL   = "PASSWORD_RESET_TOKEN_TTL"
	EnvEmailVerifyTTL     = "EMAIL_VERIFY_TOKEN_TTL"
	EnvBcryptCost         = "BCRYPT_COST"
	EnvSweepInterval      = "SWEEP_INTERVAL"
	EnvSecureCookies      = "SECURE_COOKIES"
	EnvNotifier           = "NOTIFIER"
	EnvKafkaBrokers       = "KAFKA_BROKERS"
	EnvKafkaTopic         = "KAFKA_TOPIC"
	EnvMailFrom           = "MAIL_FROM"
	EnvAppBaseURL         = "APP_BASE_URL"
	EnvSESRegion          = "SES_REGION"
	EnvSESAccessKeyID     = "SES_ACCESS_KEY_ID"
	EnvSESSecretAccessKey = "SES_SECRET_ACCESS_KEY"
	EnvSESBaseEndpoint    = "SES_BASE_ENDPOINT"
	defaultDotEnvFileName = ".env"
)

// parseEnv overlays values from the process environment. A .env file
// (path from -env, default ./.env) is loaded first; it never overrides
// variables that are already set. Malformed numbers and durations are
// ignored so a typo cannot silently zero a TTL.
func parseEnv(config *Config) {
	envFile := flagx.EnvFileFlags()
	if envFile == "" {
		envFile = defaultDotEnvFileName
	}
	_ = godotenv.Load(envFile)

	envString(&config.EndpointAddrHTTP, EnvHTTPAddr)
	envString(&config.EndpointAddrGRPC, EnvGRPCAddr)
	envString(&config.DatabaseDSN, EnvDatabaseDSN)
	envString(&config.LogLevel, EnvLogLevel)
	envString(&config.AccessTokenSecret, EnvAccessSecret)
	envString(&config.RefreshTokenSecret, EnvRefreshSecret)
	envString(&config.TokenIssuer, EnvTokenIssuer)
	envDuration(&config.AccessTokenValidityDuration, EnvAccessTTL)
	envDuration(&config.RefreshTokenValidityDuration, EnvRefreshTTL)
	envDuration(&config.PasswordResetTokenValidityDuration, EnvPasswordResetTTL)
	envDuration(&config.EmailVerifyTokenValidityDuration, EnvEmailVerifyTTL)
	envDuration(&config.SweepInterval, EnvSweepInterval)
	if v, ok := os.LookupEnv(EnvBcryptCost); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.BcryptCost = n
		}
	}
	if v, ok := os.LookupEnv(EnvSecureCookies); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SecureCookies = b
		}
	}
	envString(&config.Notifier, EnvNotifier)
	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		config.KafkaBrokers = CSV(v)
	}
	envString(&config.KafkaTopic, EnvKafkaTopic)
	envString(&config.MailFrom, EnvMailFrom)
	envString(&config.AppBaseURL, EnvAppBaseURL)
	envString(&config.SESRegion, EnvSESRegion)
	envString(&config.SESAccessKeyID, EnvSESAccessKeyID)
	envString(&config.SESSecretAccessKey, EnvSESSecretAccessKey)
	envString(&config.SESBaseEndpoint, EnvSESBaseEndpoint)
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

// CSV splits a comma separated list, dropping blanks.
func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
