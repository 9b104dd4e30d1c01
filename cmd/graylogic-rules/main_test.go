package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestRun_FailsBeforeConnecting(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing config file",
			config:  func(*testing.T) string { return "/nonexistent/path/config.yaml" },
			wantErr: "loading config",
		},
		{
			name: "invalid config",
			config: func(t *testing.T) string {
				return writeConfig(t, "database:\n  path: \"\"\n")
			},
			wantErr: "loading config",
		},
		{
			name: "missing automation file",
			config: func(t *testing.T) string {
				return writeConfig(t, `
database:
  path: `+filepath.Join(dir, "rules.db")+`
logging:
  level: error
automation:
  file: `+filepath.Join(dir, "missing.yaml")+`
`)
			},
			wantErr: "loading automation definitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAYLOGIC_CONFIG", tt.config(t))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := run(ctx, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("run() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		args    []string
		want    string
		wantErr bool
	}{
		{"default", "", nil, defaultConfigPath, false},
		{"environment", "/etc/graylogic/rules.yaml", nil, "/etc/graylogic/rules.yaml", false},
		{"flag wins over environment", "/etc/graylogic/rules.yaml", []string{"-config", "./local.yaml"}, "./local.yaml", false},
		{"unknown flag", "", []string{"-nope"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAYLOGIC_CONFIG", tt.env)

			got, err := getConfigPath(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("getConfigPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("getConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
