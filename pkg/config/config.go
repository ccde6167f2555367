/*
Package config loads and validates the gateway configuration. The file is
read through viper, so every value can also come from the environment or
be overridden by the CLI layer.
*/
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

const (
	KindLocal  = "local"
	KindRemote = "remote"
)

type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	MCP       MCPConfig        `mapstructure:"mcp"`
	Endpoints []EndpointConfig `mapstructure:"endpoints"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MCPConfig struct {
	RequestTimeoutSecs int `mapstructure:"request_timeout_secs"`
	RestartDelayMs     int `mapstructure:"restart_delay_ms"`
}

// RequestTimeout returns the per-request deadline applied by the HTTP layer.
func (m MCPConfig) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSecs) * time.Second
}

// RestartDelay returns the pause inserted between stop and start during a
// restart cycle.
func (m MCPConfig) RestartDelay() time.Duration {
	return time.Duration(m.RestartDelayMs) * time.Millisecond
}

/*
EndpointConfig describes one backend service. Local endpoints are spawned
as subprocesses and spoken to over stdio; remote endpoints are reached
over HTTP streaming transports.
*/
type EndpointConfig struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"`

	// local
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Env       map[string]string `mapstructure:"env"`
	AutoStart *bool             `mapstructure:"auto_start"`

	// remote
	URL string `mapstructure:"url"`

	Tools types.ToolFilter `mapstructure:"tools"`
}

// ShouldAutoStart reports whether the endpoint starts with the gateway.
// Local endpoints auto-start unless explicitly disabled; remote endpoints
// only when explicitly enabled.
func (e EndpointConfig) ShouldAutoStart() bool {
	if e.AutoStart != nil {
		return *e.AutoStart
	}
	return e.Type == KindLocal
}

// Filter returns the tool filter, or nil when no restriction is configured.
func (e EndpointConfig) Filter() *types.ToolFilter {
	if len(e.Tools.Include) == 0 && len(e.Tools.Exclude) == 0 {
		return nil
	}
	filter := e.Tools
	return &filter
}

// SetDefaults registers the default values for every optional key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("mcp.request_timeout_secs", 30)
	v.SetDefault("mcp.restart_delay_ms", 500)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Config("failed to decode configuration: %s", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

/*
Validate checks the cross-field constraints viper cannot express: every
endpoint needs a unique name and mount path, and the fields required by
its type must be present. Missing paths default to the endpoint name.
*/
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.Config("http.port must be between 1 and 65535")
	}
	if c.MCP.RequestTimeoutSecs <= 0 {
		return errors.Config("mcp.request_timeout_secs must be positive")
	}
	if c.MCP.RestartDelayMs < 0 {
		return errors.Config("mcp.restart_delay_ms must not be negative")
	}

	names := map[string]bool{}
	paths := map[string]bool{}

	for idx := range c.Endpoints {
		ep := &c.Endpoints[idx]

		if ep.Name == "" {
			return errors.Config("endpoint name must not be empty")
		}
		if names[ep.Name] {
			return errors.Config("duplicate endpoint name: %s", ep.Name)
		}
		names[ep.Name] = true

		if ep.Path == "" {
			ep.Path = ep.Name
		}
		if paths[ep.Path] {
			return errors.Config("duplicate endpoint path: %s", ep.Path)
		}
		paths[ep.Path] = true

		switch ep.Type {
		case KindLocal:
			if ep.Command == "" {
				return errors.Config("endpoint %s: command must not be empty", ep.Name)
			}
		case KindRemote:
			if ep.URL == "" {
				return errors.Config("endpoint %s: url must not be empty", ep.Name)
			}
		default:
			return errors.Config("endpoint %s: type must be local or remote", ep.Name)
		}
	}

	return nil
}
