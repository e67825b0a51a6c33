package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/todoapi/internal/flagx"
	"github.com/dmitrijs2005/todoapi/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Interval fields use timex.Duration, which accepts both string values such
// as "15m" and integer nanoseconds.
//
// Keys missing from the file leave the corresponding Config field untouched.
type JsonConfig struct {
	Env                          string         `json:"env"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	ReadTimeout                  timex.Duration `json:"read_timeout"`
	WriteTimeout                 timex.Duration `json:"write_timeout"`
	IdleTimeout                  timex.Duration `json:"idle_timeout"`
	ShutdownTimeout              timex.Duration `json:"shutdown_timeout"`
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	CORSOrigin                   string         `json:"cors_origin"`
	CookieSecure                 bool           `json:"cookie_secure"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3PublicURL                  string         `json:"s3_public_url"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	LoginMaxAttempts             int            `json:"login_max_attempts"`
	LoginAttemptWindow           timex.Duration `json:"login_attempt_window"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		Env:                          c.Env,
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		ReadTimeout:                  timex.Duration{Duration: c.ReadTimeout},
		WriteTimeout:                 timex.Duration{Duration: c.WriteTimeout},
		IdleTimeout:                  timex.Duration{Duration: c.IdleTimeout},
		ShutdownTimeout:              timex.Duration{Duration: c.ShutdownTimeout},
		DatabaseDSN:                  c.DatabaseDSN,
		AccessTokenSecret:            c.AccessTokenSecret,
		RefreshTokenSecret:           c.RefreshTokenSecret,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		BcryptCost:                   c.BcryptCost,
		CORSOrigin:                   c.CORSOrigin,
		CookieSecure:                 c.CookieSecure,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		S3PublicURL:                  c.S3PublicURL,
		RedisAddr:                    c.RedisAddr,
		RedisPassword:                c.RedisPassword,
		LoginMaxAttempts:             c.LoginMaxAttempts,
		LoginAttemptWindow:           timex.Duration{Duration: c.LoginAttemptWindow},
	}
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	// seed with current values so absent keys keep them
	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.Env = c.Env
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.ReadTimeout = c.ReadTimeout.Duration
	config.WriteTimeout = c.WriteTimeout.Duration
	config.IdleTimeout = c.IdleTimeout.Duration
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.BcryptCost = c.BcryptCost
	config.CORSOrigin = c.CORSOrigin
	config.CookieSecure = c.CookieSecure
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3PublicURL = c.S3PublicURL
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.LoginMaxAttempts = c.LoginMaxAttempts
	config.LoginAttemptWindow = c.LoginAttemptWindow.Duration
}
