// Package config loads the relay's INI configuration file (spec.md §6).
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/ecmrelay/ecmrelay/reactor"
)

// Config is the fully parsed, validated configuration: the INPUT
// connection, the configured peers in file order, and the minimum log
// level to emit.
type Config struct {
	Input    reactor.Connection
	Peers    []reactor.Connection
	LogLevel string
}

var recognizedKeys = map[string]bool{
	"host":          true,
	"port":          true,
	"connector":     true,
	"controller":    true,
	"connect_delay": true,
	"loglevel":      true,
}

var validLogLevels = map[string]bool{
	"crit":  true,
	"warn":  true,
	"info":  true,
	"debug": true,
}

// Load reads and validates the INI file at path. Unknown sections or
// keys, out-of-range ports, and unrecognized loglevel values are all
// rejected with a descriptive error (spec.md §6, and the REDESIGN note
// in spec.md §9 about the source's silent loglevel fallback).
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg := &Config{LogLevel: "info"}
	haveInput := false
	seenNames := make(map[string]bool)

	for _, sec := range f.Sections() {
		name := strings.TrimSpace(sec.Name())
		if name == ini.DefaultSection {
			if len(sec.Keys()) != 0 {
				return nil, fmt.Errorf("config: keys outside any [section]")
			}
			continue
		}

		conn, connName, err := classifySection(name)
		if err != nil {
			return nil, err
		}

		for _, key := range sec.Keys() {
			lowerKey := strings.ToLower(strings.TrimSpace(key.Name()))
			if !recognizedKeys[lowerKey] {
				return nil, fmt.Errorf("config: unknown key %q in section [%s]", key.Name(), name)
			}
			if err := applyKey(conn, cfg, lowerKey, key.Value()); err != nil {
				return nil, fmt.Errorf("config: section [%s]: %w", name, err)
			}
		}

		if connName == "" {
			if haveInput {
				return nil, fmt.Errorf("config: multiple [Input] sections")
			}
			haveInput = true
			conn.Name = "INPUT"
			cfg.Input = *conn
		} else {
			if seenNames[strings.ToLower(connName)] {
				return nil, fmt.Errorf("config: duplicate connection name %q", connName)
			}
			seenNames[strings.ToLower(connName)] = true
			conn.Name = connName
			cfg.Peers = append(cfg.Peers, *conn)
		}
	}

	if !haveInput {
		return nil, fmt.Errorf("config: missing [Input] section")
	}
	if !validLogLevels[cfg.LogLevel] {
		return nil, fmt.Errorf("config: unrecognized loglevel %q", cfg.LogLevel)
	}

	return cfg, nil
}

// classifySection parses a section heading into a fresh Connection plus
// its configured name ("" for [Input]).
func classifySection(name string) (*reactor.Connection, string, error) {
	if strings.EqualFold(name, "Input") {
		return &reactor.Connection{}, "", nil
	}

	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Connection") {
		return nil, "", fmt.Errorf("config: unknown section heading [%s], expected [Input] or [Connection/Name]", name)
	}
	connName := strings.TrimSpace(parts[1])
	if connName == "" {
		return nil, "", fmt.Errorf("config: connection section [%s] is missing a name", name)
	}
	return &reactor.Connection{}, connName, nil
}

// applyKey sets one recognized key's value on conn, or on cfg directly
// for loglevel, which — matching original_source/ecmread.c's
// read_config — is a global setting regardless of which section it
// appears in.
func applyKey(conn *reactor.Connection, cfg *Config, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "host":
		conn.Host = value
	case "port":
		p, err := strconv.Atoi(value)
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		conn.Port = uint16(p)
	case "connector":
		b, err := parseBool01(value)
		if err != nil {
			return fmt.Errorf("connector: %w", err)
		}
		conn.Connector = b
	case "controller":
		b, err := parseBool01(value)
		if err != nil {
			return fmt.Errorf("controller: %w", err)
		}
		conn.Controller = b
	case "connect_delay":
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 0 {
			return fmt.Errorf("invalid connect_delay %q", value)
		}
		conn.ConnectDelay = time.Duration(secs) * time.Second
	case "loglevel":
		cfg.LogLevel = strings.ToLower(value)
	}
	return nil
}

func parseBool01(value string) (bool, error) {
	switch value {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", value)
	}
}
