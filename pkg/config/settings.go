package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Connector kinds accepted in settings
const (
	ConnectorLocal      = "local"
	ConnectorContainerd = "containerd"
	ConnectorRunPod     = "runpod"
)

// Settings are the daemon settings. Cluster definitions live in their own
// file so they can be reloaded without a restart.
type Settings struct {
	LogLevel     string            `mapstructure:"log_level"`
	LogJSON      bool              `mapstructure:"log_json"`
	ListenAddr   string            `mapstructure:"listen_addr"`
	ClustersFile string            `mapstructure:"clusters_file"`
	Watch        bool              `mapstructure:"watch"`
	Connector    ConnectorSettings `mapstructure:"connector"`
}

// ConnectorSettings selects and configures the provisioning backend
type ConnectorSettings struct {
	Kind string `mapstructure:"kind"`

	// local
	DataDir   string        `mapstructure:"data_dir"`
	BootDelay time.Duration `mapstructure:"boot_delay"`

	// containerd
	Socket    string `mapstructure:"socket"`
	Namespace string `mapstructure:"namespace"`

	// runpod
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// Default returns the default settings
func Default() *Settings {
	return &Settings{
		LogLevel:     "info",
		LogJSON:      false,
		ListenAddr:   "127.0.0.1:9090",
		ClustersFile: "clusters.yaml",
		Watch:        true,
		Connector: ConnectorSettings{
			Kind:      ConnectorLocal,
			DataDir:   "./gingo-data",
			BootDelay: 30 * time.Second,
			Socket:    "/run/containerd/containerd.sock",
			Namespace: "gingo",
			Endpoint:  "https://api.runpod.io/graphql",
		},
	}
}

// NewViper returns a viper instance with defaults registered and GINGO_
// environment overrides enabled (e.g. GINGO_CONNECTOR_API_KEY)
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("gingo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_json", defaults.LogJSON)
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("clusters_file", defaults.ClustersFile)
	v.SetDefault("watch", defaults.Watch)

	v.SetDefault("connector.kind", defaults.Connector.Kind)
	v.SetDefault("connector.data_dir", defaults.Connector.DataDir)
	v.SetDefault("connector.boot_delay", defaults.Connector.BootDelay)
	v.SetDefault("connector.socket", defaults.Connector.Socket)
	v.SetDefault("connector.namespace", defaults.Connector.Namespace)
	v.SetDefault("connector.api_key", defaults.Connector.APIKey)
	v.SetDefault("connector.endpoint", defaults.Connector.Endpoint)
}

// LoadSettings reads the optional settings file into v and decodes the
// result. An empty path uses defaults and environment only.
func LoadSettings(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings
func (s *Settings) Validate() error {
	var errs []error
	if s.ClustersFile == "" {
		errs = append(errs, errors.New("clusters_file is required"))
	}

	switch s.Connector.Kind {
	case ConnectorLocal:
		if s.Connector.DataDir == "" {
			errs = append(errs, errors.New("connector.data_dir is required for the local connector"))
		}
	case ConnectorContainerd:
		if s.Connector.Socket == "" {
			errs = append(errs, errors.New("connector.socket is required for the containerd connector"))
		}
	case ConnectorRunPod:
		if s.Connector.APIKey == "" {
			errs = append(errs, errors.New("connector.api_key is required for the runpod connector"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown connector kind %q", s.Connector.Kind))
	}

	return errors.Join(errs...)
}
