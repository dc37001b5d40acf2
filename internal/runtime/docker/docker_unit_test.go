package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"

	"github.com/sidekick-sh/sidekick/internal/runtime"
)

func TestBuildConfigs(t *testing.T) {
	spec := runtime.StartSpec{
		Name:    "backend",
		Image:   "example/backend:1",
		Command: []string{"backend", "serve"},
		Env:     map[string]string{"B": "2", "A": "1"},
		Workdir: "/srv",
		Ports:   []string{"3000:3000"},
	}

	containerCfg, hostCfg, err := buildConfigs(spec)
	if err != nil {
		t.Fatalf("build configs: %v", err)
	}

	if containerCfg.Image != "example/backend:1" {
		t.Fatalf("unexpected image %q", containerCfg.Image)
	}
	if containerCfg.WorkingDir != "/srv" {
		t.Fatalf("unexpected workdir %q", containerCfg.WorkingDir)
	}
	if len(containerCfg.Cmd) != 2 || containerCfg.Cmd[0] != "backend" {
		t.Fatalf("unexpected command %v", containerCfg.Cmd)
	}
	if len(containerCfg.Env) != 2 || containerCfg.Env[0] != "A=1" || containerCfg.Env[1] != "B=2" {
		t.Fatalf("expected sorted env, got %v", containerCfg.Env)
	}

	port := nat.Port("3000/tcp")
	if _, ok := containerCfg.ExposedPorts[port]; !ok {
		t.Fatalf("expected exposed port %s, got %v", port, containerCfg.ExposedPorts)
	}
	bindings, ok := hostCfg.PortBindings[port]
	if !ok || len(bindings) != 1 || bindings[0].HostPort != "3000" {
		t.Fatalf("unexpected port bindings %v", hostCfg.PortBindings)
	}
}

func TestBuildConfigsRejectsMalformedPort(t *testing.T) {
	spec := runtime.StartSpec{
		Image: "example/backend:1",
		Ports: []string{"not-a-port"},
	}
	if _, _, err := buildConfigs(spec); err == nil {
		t.Fatalf("expected malformed port to be rejected")
	}
}

func TestStartRequiresImage(t *testing.T) {
	rt := New()
	if _, err := rt.Start(t.Context(), runtime.StartSpec{Name: "backend"}); err == nil {
		t.Fatalf("expected error when image is missing")
	}
}
