package cli

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, endpoint string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sidekick.yaml")
	contents := "backend:\n" +
		"  endpoint: " + endpoint + "\n" +
		"  command: [\"backend\", \"serve\"]\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"run", "status", "config"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %q subcommand", name)
		}
	}

	if flag := root.PersistentFlags().Lookup("file"); flag == nil || flag.DefValue != "sidekick.yaml" {
		t.Fatalf("expected --file flag defaulting to sidekick.yaml")
	}
}

func TestConfigCheckReportsValidManifest(t *testing.T) {
	path := writeManifest(t, "127.0.0.1:3000")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"-f", path, "config", "check"})

	if err := root.Execute(); err != nil {
		t.Fatalf("config check: %v", err)
	}
	if !strings.Contains(out.String(), "is valid") {
		t.Fatalf("expected validity report, got %q", out.String())
	}
}

func TestStatusReportsRunningListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	path := writeManifest(t, ln.Addr().String())

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"-f", path, "status", "--json"})

	if err := root.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}

	var report statusReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Running {
		t.Fatalf("expected running=true with listener bound")
	}
}

func TestStatusFailsWithoutListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	path := writeManifest(t, addr)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"-f", path, "status"})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected status to fail with no listener")
	}
}
