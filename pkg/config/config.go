// Package config loads the resolver settings.
//
// Values are layered, lowest precedence first: built-in defaults, the TOML
// settings file, CLASSPATH_* environment variables, and command-line flags.
// Settings are loaded once per process and passed explicitly; nothing in
// this package is global.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/repository"
	"github.com/matzehuels/classpath/pkg/transport"
)

const (
	// AppName names the configuration and cache directories.
	AppName = "classpath"
	// FileName is the settings file inside the configuration directory.
	FileName = "settings.toml"
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "CLASSPATH"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Settings are the user-facing resolver options.
type Settings struct {
	// LocalRepo is the local artifact repository. Empty means
	// "<cache dir>/deps".
	LocalRepo string `mapstructure:"local_repo" toml:"local_repo"`
	// Offline disables remote repositories.
	Offline bool `mapstructure:"offline" toml:"offline"`
	// Reset re-checks remote metadata and refreshes snapshots.
	Reset bool `mapstructure:"reset" toml:"reset"`
	// AllowSnapshots enables snapshot versions.
	AllowSnapshots bool `mapstructure:"allow_snapshots" toml:"allow_snapshots"`
	// ConnectTimeout and RequestTimeout accept a duration ("10s") or a
	// number of milliseconds.
	ConnectTimeout string `mapstructure:"connect_timeout" toml:"connect_timeout"`
	RequestTimeout string `mapstructure:"request_timeout" toml:"request_timeout"`
	// Repos are repository tokens: "id", "id(url)" or a URL.
	Repos []string `mapstructure:"repos" toml:"repos"`
	// Concurrency bounds parallel downloads.
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`
	// Properties are system-style properties such as http.proxyHost.
	Properties map[string]string `mapstructure:"-" toml:"properties"`
	Cache      CacheSettings     `mapstructure:"cache" toml:"cache"`

	// EnvRepos come from CLASSPATH_REPOS and take precedence over Repos.
	EnvRepos []string `mapstructure:"env_repos" toml:"-"`
}

// CacheSettings select the metadata cache.
type CacheSettings struct {
	Backend    string `mapstructure:"backend" toml:"backend"`
	Dir        string `mapstructure:"dir" toml:"dir,omitempty"`
	RedisURL   string `mapstructure:"redis_url" toml:"redis_url,omitempty"`
	Namespace  string `mapstructure:"namespace" toml:"namespace,omitempty"`
	MemorySize int    `mapstructure:"memory_size" toml:"memory_size"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		ConnectTimeout: transport.DefaultConnectTimeout.String(),
		RequestTimeout: transport.DefaultRequestTimeout.String(),
		Concurrency:    transport.DefaultMaxConnsPerHost,
		Properties:     map[string]string{},
		Cache: CacheSettings{
			Backend:    CacheFile,
			MemorySize: 256,
		},
	}
}

// env maps settings keys to their environment variables.
var env = map[string]string{
	"local_repo":      EnvPrefix + "_LOCAL_REPO",
	"offline":         EnvPrefix + "_OFFLINE",
	"reset":           EnvPrefix + "_RESET",
	"allow_snapshots": EnvPrefix + "_ALLOW_SNAPSHOTS",
	"connect_timeout": EnvPrefix + "_CONNECT_TIMEOUT",
	"request_timeout": EnvPrefix + "_REQUEST_TIMEOUT",
	"concurrency":     EnvPrefix + "_CONCURRENCY",
	"env_repos":       EnvPrefix + "_REPOS",
	"cache.backend":   EnvPrefix + "_CACHE",
	"cache.redis_url": EnvPrefix + "_REDIS_URL",
}

// LoadOptions control where settings come from.
type LoadOptions struct {
	// Path is the settings file. Empty means DefaultPath(); a missing default
	// file is not an error.
	Path string
	// AllowMissing tolerates a missing explicit Path.
	AllowMissing bool
	// Flags binds command-line flags to settings keys. Only flags that were
	// set on the command line override other sources.
	Flags map[string]*pflag.Flag
}

// Load reads the settings. It returns the settings file actually used, or
// "" when none was read.
func Load(ctx context.Context, opts LoadOptions) (*Settings, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	def := Default()
	v.SetDefault("local_repo", def.LocalRepo)
	v.SetDefault("offline", def.Offline)
	v.SetDefault("reset", def.Reset)
	v.SetDefault("allow_snapshots", def.AllowSnapshots)
	v.SetDefault("connect_timeout", def.ConnectTimeout)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("repos", def.Repos)
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("cache.backend", def.Cache.Backend)
	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("cache.redis_url", def.Cache.RedisURL)
	v.SetDefault("cache.namespace", def.Cache.Namespace)
	v.SetDefault("cache.memory_size", def.Cache.MemorySize)
	v.SetDefault("env_repos", "")

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInternal, err, "bind %s", name)
		}
	}
	for key, flag := range opts.Flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInternal, err, "bind flag %s", flag.Name)
		}
	}

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path = DefaultPath()
	}
	used := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read settings %s", path)
		}
		used = path
	} else if explicit && !opts.AllowMissing {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidPath, err, "settings file %s", path)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "parse settings")
	}
	s.EnvRepos = splitAll(s.EnvRepos)
	s.Repos = splitAll(s.Repos)
	// viper folds key case and splits on dots; property names need both.
	s.Properties = map[string]string{}
	if used != "" {
		var raw struct {
			Properties map[string]string `toml:"properties"`
		}
		if _, err := toml.DecodeFile(used, &raw); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read settings %s", used)
		}
		for k, v := range raw.Properties {
			s.Properties[k] = v
		}
	}
	if err := s.Validate(); err != nil {
		return nil, "", err
	}
	return &s, used, nil
}

func splitAll(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		out = append(out, repository.SplitTokens(t)...)
	}
	return out
}

// Validate checks values that cannot be checked by decoding alone.
func (s *Settings) Validate() error {
	if _, err := ParseTimeout(s.ConnectTimeout); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "connect_timeout")
	}
	if _, err := ParseTimeout(s.RequestTimeout); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "request_timeout")
	}
	switch s.Cache.Backend {
	case "", CacheFile, CacheRedis, CacheMemory, CacheNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want file, redis, memory or none)", s.Cache.Backend)
	}
	if s.Cache.Backend == CacheRedis && s.Cache.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend redis needs cache.redis_url")
	}
	if s.Concurrency < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must not be negative")
	}
	return nil
}

// ParseTimeout parses a duration ("1m30s") or a plain number of
// milliseconds. The empty string yields zero, which selects the default.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative timeout %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", s)
	}
	return d, nil
}

// ConfigDir returns $XDG_CONFIG_HOME/classpath or the platform equivalent.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("."+AppName, "config")
	}
	return filepath.Join(dir, AppName)
}

// DefaultPath returns the default settings file.
func DefaultPath() string { return filepath.Join(ConfigDir(), FileName) }

// CacheDir returns the user cache directory of the application.
func CacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join("."+AppName, "cache")
	}
	return filepath.Join(dir, AppName)
}

// LocalRepoPath returns the configured local repository, defaulting to
// "<cache dir>/deps".
func (s *Settings) LocalRepoPath() string {
	if s.LocalRepo != "" {
		return s.LocalRepo
	}
	return filepath.Join(CacheDir(), "deps")
}

// MetadataCacheDir returns the directory of the file metadata cache.
func (s *Settings) MetadataCacheDir() string {
	if s.Cache.Dir != "" {
		return s.Cache.Dir
	}
	return filepath.Join(CacheDir(), "metadata")
}

// RepositoryTokens assembles the repository list: CLASSPATH_REPOS first,
// then configured repositories, then those declared by a project
// descriptor. Duplicates keep their first position.
func (s *Settings) RepositoryTokens(pomRepos []string) []string {
	return repository.MergeTokens(s.EnvRepos, s.Repos, pomRepos)
}

// RepositoryOptions returns the policy flags for a repository registry.
func (s *Settings) RepositoryOptions() repository.Options {
	return repository.Options{
		ForceRefresh:   s.Reset,
		AllowSnapshots: s.AllowSnapshots,
		LocalHome:      localrepo.DefaultHome(),
	}
}

// LocalRepoOptions returns the options of the local artifact repository.
func (s *Settings) LocalRepoOptions() localrepo.Options {
	return localrepo.Options{Root: s.LocalRepoPath(), ForceRefresh: s.Reset}
}

// TransportOptions returns the fetch options. Timeouts were validated by
// Load.
func (s *Settings) TransportOptions() transport.Options {
	connect, _ := ParseTimeout(s.ConnectTimeout)
	request, _ := ParseTimeout(s.RequestTimeout)
	return transport.Options{
		ConnectTimeout:  connect,
		RequestTimeout:  request,
		MaxConnsPerHost: s.Concurrency,
		Offline:         s.Offline,
	}
}

// Encode writes s as TOML.
func (s *Settings) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

// Save writes s to path, creating parent directories.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "encode settings")
	}
	return f.Close()
}

// Init writes the default settings to path unless the file exists and
// force is false. It reports whether the file was written.
func Init(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := Default().Save(path); err != nil {
		return false, err
	}
	return true, nil
}

// Decode reads TOML settings without the other layers.
func Decode(r io.Reader) (*Settings, error) {
	s := Default()
	if _, err := toml.NewDecoder(r).Decode(s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode settings")
	}
	return s, nil
}
