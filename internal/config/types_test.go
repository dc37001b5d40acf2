package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshal(t *testing.T) {
	var spec ProbeSpec
	if err := yaml.Unmarshal([]byte(`timeout: 150ms`), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if spec.Timeout.Duration != 150*time.Millisecond {
		t.Fatalf("expected 150ms, got %s", spec.Timeout.Duration)
	}
	if !spec.Timeout.IsSet() {
		t.Fatalf("expected explicit duration to report IsSet")
	}
}

func TestDurationUnmarshalEmptyIsExplicit(t *testing.T) {
	var spec ProbeSpec
	if err := yaml.Unmarshal([]byte(`timeout: ""`), &spec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if spec.Timeout.Duration != 0 {
		t.Fatalf("expected zero duration, got %s", spec.Timeout.Duration)
	}
	if !spec.Timeout.IsSet() {
		t.Fatalf("expected explicitly empty duration to report IsSet")
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	var spec ProbeSpec
	if err := yaml.Unmarshal([]byte(`timeout: soon`), &spec); err == nil {
		t.Fatalf("expected invalid duration to be rejected")
	}
}

func TestValidateRejectsUnsupportedVersion(t *testing.T) {
	f := &File{
		Version: "2",
		Backend: &BackendSpec{
			Endpoint: "127.0.0.1:3000",
			Runtime:  RuntimeProcess,
			Command:  []string{"backend"},
			Probe:    ProbeSpec{Kind: ProbeKindTCP},
		},
		Shutdown: ShutdownSpec{Policy: ShutdownLenient},
	}
	if err := f.Validate(); err == nil {
		t.Fatalf("expected unsupported version to be rejected")
	}
}
