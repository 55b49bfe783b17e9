package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ecmrelay.ini")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 192.168.1.50
port = 7000
connector = 1

[Connection/dashboard]
host = 0.0.0.0
port = 8000
controller = 0
connect_delay = 5

[Connection/control-panel]
host = 0.0.0.0
port = 8001
controller = 1
connect_delay = 10
loglevel = debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Input.Host != "192.168.1.50" || cfg.Input.Port != 7000 || !cfg.Input.Connector {
		t.Fatalf("input mismatch: %+v", cfg.Input)
	}
	if len(cfg.Peers) != 2 {
		t.Fatalf("got %d peers, want 2", len(cfg.Peers))
	}
	if cfg.Peers[0].Name != "dashboard" || cfg.Peers[0].Controller {
		t.Fatalf("peer 0 mismatch: %+v", cfg.Peers[0])
	}
	if cfg.Peers[1].Name != "control-panel" || !cfg.Peers[1].Controller {
		t.Fatalf("peer 1 mismatch: %+v", cfg.Peers[1])
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("loglevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadDefaultsLogLevelToInfo(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("loglevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000

[Bogus]
host = 1.2.3.4
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown section")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000
bogus_key = 1
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadRejectsOutOfRangePort(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 99999
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestLoadRejectsUnrecognizedLogLevel(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000
loglevel = chatty
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for bad loglevel")
	}
}

func TestLoadRejectsMissingInput(t *testing.T) {
	path := writeConfig(t, `
[Connection/dashboard]
host = 127.0.0.1
port = 7000
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing [Input]")
	}
}

func TestLoadRejectsDuplicateConnectionNames(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000

[Connection/dashboard]
host = 127.0.0.1
port = 8000

[Connection/Dashboard]
host = 127.0.0.1
port = 8001
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for duplicate connection name (case-insensitive)")
	}
}

func TestLoadSectionAndKeyNamesAreCaseInsensitive(t *testing.T) {
	path := writeConfig(t, `
[INPUT]
HOST = 127.0.0.1
PORT = 7000
CONNECTOR = 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Input.Host != "127.0.0.1" || !cfg.Input.Connector {
		t.Fatalf("case-insensitive parse failed: %+v", cfg.Input)
	}
}

func TestLoadRejectsBadConnectorValue(t *testing.T) {
	path := writeConfig(t, `
[Input]
host = 127.0.0.1
port = 7000
connector = yes
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for non-0/1 connector value")
	}
}
