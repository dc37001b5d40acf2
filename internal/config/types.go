package config

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

// Runtime identifiers accepted by the manifest.
const (
	RuntimeProcess = "process"
	RuntimeDocker  = "docker"
)

// Probe kinds accepted by the manifest.
const (
	ProbeKindTCP  = "tcp"
	ProbeKindHTTP = "http"
)

// Shutdown policies accepted by the manifest.
const (
	ShutdownLenient = "lenient"
	ShutdownStrict  = "strict"
)

const defaultProbeTimeout = 2 * time.Second

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// File mirrors the sidekick.yaml document structure.
type File struct {
	Version  string       `yaml:"version"`
	Backend  *BackendSpec `yaml:"backend"`
	Shutdown ShutdownSpec `yaml:"shutdown"`
}

// BackendSpec describes the backend the supervisor owns: where it listens,
// how to launch it and how to probe it.
type BackendSpec struct {
	Name        string            `yaml:"name"`
	Endpoint    string            `yaml:"endpoint"`
	Runtime     string            `yaml:"runtime"`
	Command     []string          `yaml:"command"`
	Image       string            `yaml:"image"`
	Workdir     string            `yaml:"workdir"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Ports       []string          `yaml:"ports"`
	Probe       ProbeSpec         `yaml:"probe"`

	// ResolvedWorkdir is the workdir made absolute against the manifest
	// location during loading.
	ResolvedWorkdir string `yaml:"-"`
}

// ProbeSpec configures the liveness probe used to decide whether the backend
// is already serving.
type ProbeSpec struct {
	Kind         string   `yaml:"kind"`
	URL          string   `yaml:"url"`
	ExpectStatus []int    `yaml:"expectStatus"`
	Timeout      Duration `yaml:"timeout"`
}

// ShutdownSpec selects how termination failures are handled.
type ShutdownSpec struct {
	Policy string `yaml:"policy"`
}

// ApplyDefaults fills in the manifest fields that may be omitted.
func (f *File) ApplyDefaults() error {
	if f.Backend == nil {
		return fmt.Errorf("backend section is required")
	}
	b := f.Backend
	if b.Name == "" {
		b.Name = "backend"
	}
	if b.Runtime == "" {
		b.Runtime = RuntimeProcess
	}
	if b.Probe.Kind == "" {
		b.Probe.Kind = ProbeKindTCP
	}
	if !b.Probe.Timeout.IsSet() {
		b.Probe.Timeout = Duration{Duration: defaultProbeTimeout}
	}
	if b.Probe.Kind == ProbeKindHTTP && b.Probe.URL == "" && b.Endpoint != "" {
		b.Probe.URL = fmt.Sprintf("http://%s/", b.Endpoint)
	}
	if f.Shutdown.Policy == "" {
		f.Shutdown.Policy = ShutdownLenient
	}
	return nil
}

// Validate checks the semantic constraints the schema cannot express.
func (f *File) Validate() error {
	if f.Version != "" && f.Version != "1" {
		return fmt.Errorf("unsupported version %q", f.Version)
	}
	b := f.Backend
	if b == nil {
		return fmt.Errorf("backend section is required")
	}
	if b.Endpoint == "" {
		return fmt.Errorf("backend.endpoint is required")
	}
	host, port, err := net.SplitHostPort(b.Endpoint)
	if err != nil {
		return fmt.Errorf("backend.endpoint %q: %w", b.Endpoint, err)
	}
	if host == "" || port == "" {
		return fmt.Errorf("backend.endpoint %q: host and port are required", b.Endpoint)
	}

	switch b.Runtime {
	case RuntimeProcess:
		if len(b.Command) == 0 {
			return fmt.Errorf("backend.command is required for the %s runtime", RuntimeProcess)
		}
	case RuntimeDocker:
		if b.Image == "" {
			return fmt.Errorf("backend.image is required for the %s runtime", RuntimeDocker)
		}
	default:
		return fmt.Errorf("backend.runtime %q: expected one of %s", b.Runtime, enumList(RuntimeProcess, RuntimeDocker))
	}

	switch b.Probe.Kind {
	case ProbeKindTCP:
	case ProbeKindHTTP:
		if b.Probe.URL == "" {
			return fmt.Errorf("backend.probe.url is required for the %s probe", ProbeKindHTTP)
		}
	default:
		return fmt.Errorf("backend.probe.kind %q: expected one of %s", b.Probe.Kind, enumList(ProbeKindTCP, ProbeKindHTTP))
	}
	if b.Probe.Timeout.Duration < 0 {
		return fmt.Errorf("backend.probe.timeout must not be negative")
	}

	switch f.Shutdown.Policy {
	case ShutdownLenient, ShutdownStrict:
	default:
		return fmt.Errorf("shutdown.policy %q: expected one of %s", f.Shutdown.Policy, enumList(ShutdownLenient, ShutdownStrict))
	}
	return nil
}

func enumList(values ...string) string {
	sort.Strings(values)
	return strings.Join(values, ", ")
}
