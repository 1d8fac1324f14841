package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/gingo/pkg/health"
	"github.com/cuemby/gingo/pkg/types"
	"gopkg.in/yaml.v3"
)

// ProbeSpec describes the health checker of a cluster. Endpoint and Command
// may contain {pod}, which is replaced by the pod ID on every probe.
type ProbeSpec struct {
	Type      health.CheckType  `yaml:"type"`
	Endpoint  string            `yaml:"endpoint,omitempty"`
	Service   string            `yaml:"service,omitempty"`
	Method    string            `yaml:"method,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	StatusMin int               `yaml:"statusMin,omitempty"`
	StatusMax int               `yaml:"statusMax,omitempty"`
	Command   []string          `yaml:"command,omitempty"`
}

// Checker builds the health checker described by p
func (p ProbeSpec) Checker() (health.Checker, error) {
	switch p.Type {
	case health.CheckTypeHTTP:
		if p.Endpoint == "" {
			return nil, fmt.Errorf("http probe requires endpoint")
		}
		c := health.NewHTTPChecker(p.Endpoint)
		if p.Method != "" {
			c.WithMethod(p.Method)
		}
		for k, v := range p.Headers {
			c.WithHeader(k, v)
		}
		if p.StatusMin > 0 || p.StatusMax > 0 {
			if p.StatusMin <= 0 || p.StatusMax < p.StatusMin {
				return nil, fmt.Errorf("invalid http status range %d-%d", p.StatusMin, p.StatusMax)
			}
			c.WithStatusRange(p.StatusMin, p.StatusMax)
		}
		return c, nil
	case health.CheckTypeTCP:
		if p.Endpoint == "" {
			return nil, fmt.Errorf("tcp probe requires endpoint")
		}
		return health.NewTCPChecker(p.Endpoint), nil
	case health.CheckTypeGRPC:
		if p.Endpoint == "" {
			return nil, fmt.Errorf("grpc probe requires endpoint")
		}
		return health.NewGRPCChecker(p.Endpoint, p.Service), nil
	case health.CheckTypeExec:
		if len(p.Command) == 0 {
			return nil, fmt.Errorf("exec probe requires command")
		}
		return health.NewExecChecker(p.Command), nil
	default:
		return nil, fmt.Errorf("unknown probe type %q", p.Type)
	}
}

// ClusterEntry is one cluster as written in the clusters file
type ClusterEntry struct {
	types.ClusterConfig `yaml:",inline"`

	Probe *ProbeSpec `yaml:"probe,omitempty"`
}

// ClustersFile is the document watched for hot reload
type ClustersFile struct {
	Clusters []ClusterEntry `yaml:"clusters"`
}

// ParseClusters decodes a clusters document. Unknown keys are rejected,
// except inside backendCreateParams.
func ParseClusters(data []byte) (*ClustersFile, error) {
	var f ClustersFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse clusters: %w", err)
	}
	return &f, nil
}

// LoadClusters reads and decodes a clusters file
func LoadClusters(path string) (*ClustersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clusters file: %w", err)
	}
	return ParseClusters(data)
}

// Configs returns the cluster configs in file order
func (f *ClustersFile) Configs() []types.ClusterConfig {
	cfgs := make([]types.ClusterConfig, len(f.Clusters))
	for i, e := range f.Clusters {
		cfgs[i] = e.ClusterConfig
	}
	return cfgs
}

// Checkers builds the probe of every cluster that declares one
func (f *ClustersFile) Checkers() (map[string]health.Checker, error) {
	checkers := make(map[string]health.Checker)
	var errs []error
	for _, e := range f.Clusters {
		if e.Probe == nil {
			continue
		}
		c, err := e.Probe.Checker()
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: cluster %q: %w", ErrInvalidConfig, e.ID, err))
			continue
		}
		checkers[e.ID] = c
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return checkers, nil
}

// Validate checks the cluster configs and probe definitions
func (f *ClustersFile) Validate() error {
	_, probeErr := f.Checkers()
	return errors.Join(ValidateClusters(f.Configs()), probeErr)
}
