package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tunnelguard/tunnelguard/client/internal/remote"
	"github.com/tunnelguard/tunnelguard/client/internal/session"
	"github.com/tunnelguard/tunnelguard/util"
)

const (
	defaultConnTimeoutSeconds = 30
	defaultControlAddr        = "127.0.0.1:53682"
)

// RemoteConfig is one server endpoint candidate.
type RemoteConfig struct {
	Host  string
	Port  uint16
	Proto string
}

// Config holds the client configuration persisted as JSON.
type Config struct {
	Remotes     []RemoteConfig
	ProfilePath string
	Username    string
	Password    string

	// ConnTimeoutSeconds bounds how long a connection attempt may take
	// before the watchdog fires. Nil means the default; zero or negative
	// disables the watchdog.
	ConnTimeoutSeconds *int
	// ServerPollTimeoutSeconds bounds the wait for the first packet from
	// the server before trying the next remote. Zero disables polling.
	ServerPollTimeoutSeconds int
	PauseOnConnectionTimeout bool

	ControlAddr string
	Nameserver  string
}

// ReadConfig reads the configuration from the given path, creating it with
// defaults when it does not exist yet.
func ReadConfig(configPath string) (*Config, error) {
	if configFileIsExists(configPath) {
		config := &Config{}
		if _, err := util.ReadJson(configPath, config); err != nil {
			return nil, err
		}
		config.applyDefaults()
		return config, nil
	}

	config := &Config{}
	config.applyDefaults()
	if err := util.WriteJson(configPath, config); err != nil {
		return nil, err
	}
	log.Infof("created new config at %s", configPath)
	return config, nil
}

func configFileIsExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func (c *Config) applyDefaults() {
	// An absent field gets the default, an explicit zero stays zero.
	if c.ConnTimeoutSeconds == nil {
		v := defaultConnTimeoutSeconds
		c.ConnTimeoutSeconds = &v
	}
	if c.ControlAddr == "" {
		c.ControlAddr = defaultControlAddr
	}
	for i := range c.Remotes {
		if c.Remotes[i].Proto == "" {
			c.Remotes[i].Proto = "udp"
		}
		if c.Remotes[i].Port == 0 {
			c.Remotes[i].Port = 1194
		}
	}
}

// RemoteList builds the ordered remote candidate list from the config.
func (c *Config) RemoteList() (*remote.List, error) {
	if len(c.Remotes) == 0 {
		return nil, fmt.Errorf("no remotes configured")
	}
	endpoints := make([]remote.Endpoint, 0, len(c.Remotes))
	for _, r := range c.Remotes {
		proto := strings.ToLower(r.Proto)
		if proto != "udp" && proto != "tcp" {
			return nil, fmt.Errorf("remote %s: unsupported protocol %q", r.Host, r.Proto)
		}
		endpoints = append(endpoints, remote.Endpoint{
			Host:  r.Host,
			Port:  r.Port,
			Proto: proto,
		})
	}
	return remote.NewList(endpoints), nil
}

// ClientOptions adapts the config and remote list to what the supervisor
// consumes per connection attempt.
type ClientOptions struct {
	config *Config
	list   *remote.List
}

func NewClientOptions(config *Config, list *remote.List) *ClientOptions {
	return &ClientOptions{config: config, list: list}
}

func (o *ClientOptions) ConnTimeout() time.Duration {
	if o.config.ConnTimeoutSeconds == nil {
		return defaultConnTimeoutSeconds * time.Second
	}
	if *o.config.ConnTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(*o.config.ConnTimeoutSeconds) * time.Second
}

func (o *ClientOptions) ServerPollTimeout() (time.Duration, bool) {
	if o.config.ServerPollTimeoutSeconds <= 0 {
		return 0, false
	}
	return time.Duration(o.config.ServerPollTimeoutSeconds) * time.Second, true
}

func (o *ClientOptions) PauseOnConnectionTimeout() bool {
	return o.config.PauseOnConnectionTimeout
}

func (o *ClientOptions) Next() {
	o.list.Next()
}

func (o *ClientOptions) SessionConfig() session.Config {
	return session.Config{
		ID:          uuid.New().String(),
		Remote:      o.list.Current(),
		ProfilePath: o.config.ProfilePath,
		Username:    o.config.Username,
		Password:    o.config.Password,
	}
}
