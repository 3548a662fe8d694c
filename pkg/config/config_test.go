package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/transport"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range env {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, used, err := Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != "" {
		t.Errorf("used = %q, want none", used)
	}
	if s.Offline || s.Reset || s.AllowSnapshots {
		t.Errorf("flags = %+v, want all false", s)
	}
	if s.Cache.Backend != CacheFile {
		t.Errorf("Cache.Backend = %q, want %q", s.Cache.Backend, CacheFile)
	}
	opts := s.TransportOptions()
	if opts.ConnectTimeout != transport.DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", opts.ConnectTimeout, transport.DefaultConnectTimeout)
	}
	if got := s.LocalRepoPath(); filepath.Base(got) != "deps" {
		t.Errorf("LocalRepoPath() = %q, want .../deps", got)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `
local_repo = "/srv/m2"
offline = true
connect_timeout = "1500"
repos = ["central", "corp(https://repo.example.com/maven)"]

[properties]
"http.proxyHost" = "proxy.example.com"

[cache]
backend = "memory"
`)

	s, used, err := Load(context.Background(), LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != path {
		t.Errorf("used = %q, want %q", used, path)
	}
	if s.LocalRepoPath() != "/srv/m2" {
		t.Errorf("LocalRepoPath() = %q", s.LocalRepoPath())
	}
	if !s.Offline {
		t.Error("Offline = false, want true")
	}
	if got := s.TransportOptions().ConnectTimeout; got != 1500*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want 1.5s", got)
	}
	if got := s.Properties["http.proxyHost"]; got != "proxy.example.com" {
		t.Errorf("http.proxyHost = %q", got)
	}
	if s.Cache.Backend != CacheMemory {
		t.Errorf("Cache.Backend = %q", s.Cache.Backend)
	}
	want := []string{"central", "corp(https://repo.example.com/maven)"}
	if !slices.Equal(s.Repos, want) {
		t.Errorf("Repos = %v, want %v", s.Repos, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, "offline = false\nrequest_timeout = \"10s\"\n")
	t.Setenv("CLASSPATH_OFFLINE", "true")
	t.Setenv("CLASSPATH_REQUEST_TIMEOUT", "2m")
	t.Setenv("CLASSPATH_REPOS", "jcenter, corp(http://corp/repo) sonatype")

	s, _, err := Load(context.Background(), LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.Offline {
		t.Error("Offline = false, want env override")
	}
	if got := s.TransportOptions().RequestTimeout; got != 2*time.Minute {
		t.Errorf("RequestTimeout = %v, want 2m", got)
	}
	want := []string{"jcenter", "corp(http://corp/repo)", "sonatype"}
	if !slices.Equal(s.EnvRepos, want) {
		t.Errorf("EnvRepos = %v, want %v", s.EnvRepos, want)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLASSPATH_LOCAL_REPO", "/from/env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	local := fs.String("local", "", "")
	fs.Bool("offline", false, "")
	if err := fs.Parse([]string{"--local", "/from/flag"}); err != nil {
		t.Fatal(err)
	}
	_ = local

	s, _, err := Load(context.Background(), LoadOptions{Flags: map[string]*pflag.Flag{
		"local_repo": fs.Lookup("local"),
		"offline":    fs.Lookup("offline"),
	}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.LocalRepo != "/from/flag" {
		t.Errorf("LocalRepo = %q, want flag value", s.LocalRepo)
	}
	if s.Offline {
		t.Error("unset flag overrode default")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		env      map[string]string
		missing  bool
		code     errors.Code
	}{
		{name: "missing explicit file", missing: true, code: errors.ErrCodeInvalidPath},
		{name: "malformed toml", settings: "offline = = true", code: errors.ErrCodeInvalidInput},
		{name: "bad timeout", settings: `connect_timeout = "soon"`, code: errors.ErrCodeInvalidInput},
		{name: "bad env timeout", env: map[string]string{"CLASSPATH_CONNECT_TIMEOUT": "-5"}, code: errors.ErrCodeInvalidInput},
		{name: "unknown backend", settings: "[cache]\nbackend = \"s3\"", code: errors.ErrCodeInvalidInput},
		{name: "redis without url", settings: "[cache]\nbackend = \"redis\"", code: errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "absent.toml")
			if !tt.missing {
				path = writeSettings(t, tt.settings)
			}
			_, _, err := Load(context.Background(), LoadOptions{Path: path})
			if !errors.Is(err, tt.code) {
				t.Errorf("Load() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"250", 250 * time.Millisecond, false},
		{" 30s ", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"-1", 0, true},
		{"-3s", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeout(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTimeout(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepositoryTokens(t *testing.T) {
	s := &Settings{
		EnvRepos: []string{"corp(http://corp/repo)", "central"},
		Repos:    []string{"central", "jcenter"},
	}
	got := s.RepositoryTokens([]string{"jcenter", "http://pom/repo"})
	want := []string{"corp(http://corp/repo)", "central", "jcenter", "http://pom/repo"}
	if !slices.Equal(got, want) {
		t.Errorf("RepositoryTokens() = %v, want %v", got, want)
	}
}

func TestSaveAndInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	wrote, err := Init(path, false)
	if err != nil || !wrote {
		t.Fatalf("Init() = %v, %v, want true", wrote, err)
	}
	wrote, err = Init(path, false)
	if err != nil || wrote {
		t.Errorf("second Init() = %v, %v, want false", wrote, err)
	}

	s := Default()
	s.Offline = true
	s.Repos = []string{"central"}
	s.Properties["https.proxyHost"] = "p"
	s.EnvRepos = []string{"never-written"}
	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("EnvRepos was encoded")
	}
	back, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !back.Offline || !slices.Equal(back.Repos, s.Repos) || back.Properties["https.proxyHost"] != "p" {
		t.Errorf("Decode() = %+v", back)
	}
}
