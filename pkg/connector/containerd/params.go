package containerd

import (
	"fmt"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Keys read from BackendCreateParams
const (
	ParamImage  = "image"
	ParamEnv    = "env"
	ParamMounts = "mounts"
)

// Params are the container settings of a cluster
type Params struct {
	Image  string
	Env    []string
	Mounts []specs.Mount
}

// ParseParams reads container settings from a cluster's
// BackendCreateParams. env is a map of variables; mounts is a list of
// "source:destination[:ro]" bind mounts.
func ParseParams(raw map[string]any) (Params, error) {
	var p Params

	image, _ := raw[ParamImage].(string)
	if image == "" {
		return p, fmt.Errorf("backendCreateParams.%s is required", ParamImage)
	}
	p.Image = image

	switch env := raw[ParamEnv].(type) {
	case nil:
	case map[string]any:
		for k, v := range env {
			p.Env = append(p.Env, fmt.Sprintf("%s=%v", k, v))
		}
	default:
		return p, fmt.Errorf("backendCreateParams.%s must be a map", ParamEnv)
	}

	switch mounts := raw[ParamMounts].(type) {
	case nil:
	case []any:
		for _, m := range mounts {
			s, ok := m.(string)
			if !ok {
				return p, fmt.Errorf("backendCreateParams.%s entries must be strings", ParamMounts)
			}
			mount, err := parseMount(s)
			if err != nil {
				return p, err
			}
			p.Mounts = append(p.Mounts, mount)
		}
	default:
		return p, fmt.Errorf("backendCreateParams.%s must be a list", ParamMounts)
	}

	return p, nil
}

func parseMount(s string) (specs.Mount, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return specs.Mount{}, fmt.Errorf("invalid mount %q, want source:destination[:ro]", s)
	}

	options := []string{"rbind", "rw"}
	if len(parts) == 3 {
		if parts[2] != "ro" {
			return specs.Mount{}, fmt.Errorf("invalid mount option %q in %q", parts[2], s)
		}
		options = []string{"rbind", "ro"}
	}

	return specs.Mount{
		Source:      parts[0],
		Destination: parts[1],
		Type:        "bind",
		Options:     options,
	}, nil
}
