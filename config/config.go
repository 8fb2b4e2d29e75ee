// Copyright 2026 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/cloudbase/gitlab-job-exporter/util/appdefaults"
)

type (
	LogLevel  string
	LogFormat string
)

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// Environment variables that override values from the config file.
const (
	EnvGitlabURL       = "GITLAB_URL"
	EnvGitlabProjectID = "GITLAB_PROJECT_ID"
	EnvGitlabToken     = "GITLAB_TOKEN"
	EnvGitlabBranch    = "GITLAB_BRANCH"
	EnvBindAddress     = "EXPORTER_BIND"
	EnvPort            = "EXPORTER_PORT"
)

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// Override mutates a config after the file and the environment have been
// applied. Command line flags are applied this way.
type Override func(*Config)

// NewConfig returns a new, validated Config.
func NewConfig(cfgFile string, overrides ...Override) (*Config, error) {
	config, err := Load(cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return config, nil
}

// Load reads the config file, if it exists, applies the environment and
// the overrides on top of it. The result is not validated. A missing config
// file is not an error; in that case all required values must come from the
// environment or the overrides.
func Load(cfgFile string, overrides ...Override) (*Config, error) {
	config := Default()
	if cfgFile != "" {
		if _, err := toml.DecodeFile(cfgFile, config); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrap(err, "decoding toml")
			}
		}
	}
	if err := config.ApplyEnvironment(os.LookupEnv); err != nil {
		return nil, errors.Wrap(err, "applying environment")
	}
	for _, override := range overrides {
		override(config)
	}
	return config, nil
}

// Default returns a config populated with default values.
func Default() *Config {
	return &Config{
		Default: Logging{
			LogLevel:  LevelInfo,
			LogFormat: FormatText,
		},
		APIServer: APIServer{
			Bind: appdefaults.DefaultBindAddress,
			Port: appdefaults.DefaultPort,
		},
		Metrics: Metrics{
			Path:        appdefaults.DefaultMetricsPath,
			DisableAuth: true,
		},
		Gitlab: Gitlab{
			Branch:  appdefaults.DefaultBranch,
			Timeout: Duration(appdefaults.DefaultGitlabTimeout),
		},
	}
}

type Config struct {
	Default   Logging   `toml:"default" json:"default"`
	APIServer APIServer `toml:"apiserver" json:"apiserver"`
	Metrics   Metrics   `toml:"metrics" json:"metrics"`
	Gitlab    Gitlab    `toml:"gitlab" json:"gitlab"`
}

// ApplyEnvironment overrides config values with the ones found in the
// environment.
func (c *Config) ApplyEnvironment(lookup LookupEnvFunc) error {
	if val, ok := lookup(EnvGitlabURL); ok && val != "" {
		c.Gitlab.BaseURL = val
	}
	if val, ok := lookup(EnvGitlabProjectID); ok && val != "" {
		c.Gitlab.ProjectID = val
	}
	if val, ok := lookup(EnvGitlabToken); ok && val != "" {
		c.Gitlab.Token = val
	}
	if val, ok := lookup(EnvGitlabBranch); ok && val != "" {
		c.Gitlab.Branch = val
	}
	if val, ok := lookup(EnvBindAddress); ok && val != "" {
		c.APIServer.Bind = val
	}
	if val, ok := lookup(EnvPort); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvPort)
		}
		c.APIServer.Port = port
	}
	return nil
}

// Validate validates the config
func (c *Config) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return errors.Wrap(err, "validating default section")
	}

	if err := c.APIServer.Validate(); err != nil {
		return errors.Wrap(err, "validating APIServer config")
	}

	if err := c.Metrics.Validate(); err != nil {
		return errors.Wrap(err, "validating metrics config")
	}

	if err := c.Gitlab.Validate(); err != nil {
		return errors.Wrap(err, "validating gitlab config")
	}
	return nil
}

// Logging holds the log settings.
type Logging struct {
	// LogFile is the location of the log file. If empty, we log to stdout.
	LogFile   string    `toml:"log_file,omitempty" json:"log-file,omitempty"`
	LogLevel  LogLevel  `toml:"log_level" json:"log-level"`
	LogFormat LogFormat `toml:"log_format" json:"log-format"`
	// LogMaxSizeMB is the size in megabytes at which the log file
	// gets rotated. Only used when LogFile is set.
	LogMaxSizeMB  int `toml:"log_max_size_mb" json:"log-max-size-mb"`
	LogMaxBackups int `toml:"log_max_backups" json:"log-max-backups"`
	LogMaxAgeDays int `toml:"log_max_age_days" json:"log-max-age-days"`
}

func (l *Logging) Validate() error {
	switch l.LogLevel {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, "":
	default:
		return fmt.Errorf("invalid log_level %q", l.LogLevel)
	}

	switch l.LogFormat {
	case FormatText, FormatJSON, "":
	default:
		return fmt.Errorf("invalid log_format %q", l.LogFormat)
	}

	if l.LogMaxSizeMB < 0 || l.LogMaxBackups < 0 || l.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	return nil
}

// Gitlab holds the settings needed to query the GitLab API.
type Gitlab struct {
	// BaseURL is the projects endpoint prefix. The project ID is appended
	// to it, so it usually looks like https://gitlab.example.com/api/v4/projects/
	BaseURL   string `toml:"base_url" json:"base-url"`
	ProjectID string `toml:"project_id" json:"project-id"`
	Token     string `toml:"token" json:"token"`
	// Branch is the value of the Branch label attached to every job metric.
	Branch  string   `toml:"branch" json:"branch"`
	Timeout Duration `toml:"timeout" json:"timeout"`
	// CACertBundle is an optional path to a PEM encoded CA bundle, for
	// GitLab instances behind an internal CA.
	CACertBundle string `toml:"ca_cert_bundle,omitempty" json:"ca-cert-bundle,omitempty"`
}

func (g *Gitlab) Validate() error {
	if g.BaseURL == "" {
		return fmt.Errorf("missing base_url")
	}
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return errors.Wrap(err, "parsing base_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url has no host")
	}

	if strings.TrimSpace(g.ProjectID) == "" {
		return fmt.Errorf("missing project_id")
	}

	if g.Token == "" {
		return fmt.Errorf("missing token")
	}

	if g.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	if g.CACertBundle != "" {
		if _, err := g.CACertPool(); err != nil {
			return errors.Wrap(err, "loading ca_cert_bundle")
		}
	}
	return nil
}

// RequestTimeout returns the timeout used for each GitLab API call.
func (g *Gitlab) RequestTimeout() time.Duration {
	if g.Timeout.Duration() == 0 {
		return appdefaults.DefaultGitlabTimeout
	}
	return g.Timeout.Duration()
}

// CACertPool returns the cert pool built from CACertBundle, or nil if no
// bundle is configured.
func (g *Gitlab) CACertPool() (*x509.CertPool, error) {
	if g.CACertBundle == "" {
		return nil, nil
	}
	caCertPEM, err := os.ReadFile(g.CACertBundle)
	if err != nil {
		return nil, err
	}
	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM(caCertPEM); !ok {
		return nil, fmt.Errorf("failed to parse CA cert bundle")
	}
	return roots, nil
}

// Metrics holds the settings of the metrics endpoint.
type Metrics struct {
	Path string `toml:"path" json:"path"`
	// DisableAuth allows anyone to scrape the metrics endpoint. When
	// false, a JWT with the read_metrics claim is required.
	DisableAuth bool    `toml:"disable_auth" json:"disable-auth"`
	JWTAuth     JWTAuth `toml:"jwt_auth" json:"jwt-auth"`
}

func (m *Metrics) Validate() error {
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("metrics path must start with /")
	}
	if !m.DisableAuth {
		if err := m.JWTAuth.Validate(); err != nil {
			return errors.Wrap(err, "validating jwt_auth")
		}
	}
	return nil
}

// JWTAuth holds settings used to validate metrics tokens.
type JWTAuth struct {
	Secret     string   `toml:"secret" json:"secret"`
	TimeToLive Duration `toml:"time_to_live" json:"time-to-live"`
}

// Validate validates the JWTAuth config
func (j *JWTAuth) Validate() error {
	if j.TimeToLive.Duration() < 0 {
		return fmt.Errorf("invalid time_to_live")
	}

	if j.Secret == "" {
		return fmt.Errorf("invalid JWT secret")
	}
	return nil
}

// TTL returns the time to live of a metrics token.
func (j *JWTAuth) TTL() time.Duration {
	if j.TimeToLive.Duration() == 0 {
		return appdefaults.DefaultJWTTTL
	}
	return j.TimeToLive.Duration()
}

// TLSConfig is the API server TLS config
type TLSConfig struct {
	CRT    string `toml:"certificate" json:"certificate"`
	Key    string `toml:"key" json:"key"`
	CACert string `toml:"ca_certificate" json:"ca-certificate"`
}

// TLSConfig returns a new TLSConfig suitable for use in the
// API server
func (t *TLSConfig) TLSConfig() (*tls.Config, error) {
	// TLS config not present.
	if t.CRT == "" || t.Key == "" {
		return nil, fmt.Errorf("missing crt or key")
	}

	var roots *x509.CertPool
	if t.CACert != "" {
		caCertPEM, err := os.ReadFile(t.CACert)
		if err != nil {
			return nil, err
		}
		roots = x509.NewCertPool()
		ok := roots.AppendCertsFromPEM(caCertPEM)
		if !ok {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
	}

	cert, err := tls.LoadX509KeyPair(t.CRT, t.Key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    roots,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Validate validates the TLS config
func (t *TLSConfig) Validate() error {
	if _, err := t.TLSConfig(); err != nil {
		return err
	}
	return nil
}

// APIServer holds configuration for the metrics server
type APIServer struct {
	Bind         string    `toml:"bind" json:"bind"`
	Port         int       `toml:"port" json:"port"`
	UseTLS       bool      `toml:"use_tls" json:"use-tls"`
	TLSConfig    TLSConfig `toml:"tls" json:"tls"`
	ReadTimeout  Duration  `toml:"read_timeout" json:"read-timeout"`
	WriteTimeout Duration  `toml:"write_timeout" json:"write-timeout"`
}

func (a *APIServer) APITLSConfig() (*tls.Config, error) {
	if !a.UseTLS {
		return nil, nil
	}

	return a.TLSConfig.TLSConfig()
}

// BindAddress returns a host:port string.
func (a *APIServer) BindAddress() string {
	return net.JoinHostPort(a.Bind, strconv.Itoa(a.Port))
}

// Validate validates the API server config
func (a *APIServer) Validate() error {
	if a.UseTLS {
		if err := a.TLSConfig.Validate(); err != nil {
			return errors.Wrap(err, "TLS validation failed")
		}
	}
	if a.Port > 65535 || a.Port < 1 {
		return fmt.Errorf("invalid port nr %d", a.Port)
	}

	ip := net.ParseIP(a.Bind)
	if ip == nil {
		// No need for deeper validation here, as any invalid
		// IP address specified in this setting will raise an error
		// when we try to bind to it.
		return fmt.Errorf("invalid IP address")
	}
	if a.ReadTimeout.Duration() < 0 || a.WriteTimeout.Duration() < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	return nil
}

// Duration is a time.Duration that can be decoded from a TOML string
// such as "10s".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "parsing duration")
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
