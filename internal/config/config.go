package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultLinesAroundRelated is how many lines away from a changed line an
// issue may be and still count as related.
const DefaultLinesAroundRelated = 20

// ErrUnknownKey is returned by SetField for keys it does not know.
var ErrUnknownKey = errors.New("unknown config key")

// Config represents the buildlens configuration.
type Config struct {
	GitHub             GitHubConfig  `yaml:"github"`
	GitLab             GitLabConfig  `yaml:"gitlab"`
	LinesAroundRelated int           `yaml:"lines_around_related"`
	WorkDir            string        `yaml:"work_dir,omitempty"`
	SourceDir          string        `yaml:"source_dir,omitempty"`
	ManifestDir        string        `yaml:"manifest_dir,omitempty"`
	LogFile            string        `yaml:"log_file,omitempty"`
	LogLevel           string        `yaml:"log_level"`
	Format             string        `yaml:"format"`
	SettingsFile       string        `yaml:"settings_file,omitempty"`
	Xcode              XcodeConfig   `yaml:"xcode"`
	Android            AndroidConfig `yaml:"android"`
}

// GitHubConfig holds the GitHub API location and credentials.
type GitHubConfig struct {
	APIURL string `yaml:"api_url"`
	WebURL string `yaml:"web_url"`
	Token  string `yaml:"token,omitempty"`
}

// GitLabConfig holds the GitLab API location and credentials.
type GitLabConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token,omitempty"`
}

// XcodeConfig maps Xcode version names to installation paths. Default is a
// version name or a path.
type XcodeConfig struct {
	Default  string            `yaml:"default,omitempty"`
	Versions map[string]string `yaml:"versions,omitempty"`
}

// AndroidConfig locates the Android SDK.
type AndroidConfig struct {
	Home string `yaml:"home,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
			WebURL: "https://github.com",
		},
		GitLab: GitLabConfig{
			BaseURL: "https://gitlab.com/api/v4",
		},
		LinesAroundRelated: DefaultLinesAroundRelated,
		LogLevel:           "info",
		Format:             "text",
	}
}

// ConfigDir returns the platform-appropriate config directory for buildlens.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "buildlens"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "cannot determine home directory")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "buildlens"), nil
	default:
		return filepath.Join(home, ".config", "buildlens"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// DefaultManifestDir is where build manifests are looked up when no
// manifest_dir is configured.
func DefaultManifestDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "manifests"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, errors.Wrap(err, "reading config file")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WithHint(
			errors.Wrapf(err, "parsing config file %s", path),
			"run 'buildlens config init' to write a fresh config file",
		)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	return os.WriteFile(path, data, 0o600)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags, keyed like SetField (only non-empty
// values are applied).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(fileCfg)

	dotenv, err := readDotEnv(".env")
	if err != nil {
		return Config{}, err
	}
	envCfg, err := FromEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if overrides[k] == "" {
			continue
		}
		if cfg, err = SetField(cfg, k, overrides[k]); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return env, nil
}

// envKeys maps environment variables to config keys. Later entries win.
var envKeys = []struct{ env, key string }{
	{"GITHUB_TOKEN", "github.token"},
	{"BUILDLENS_GITHUB_TOKEN", "github.token"},
	{"BUILDLENS_GITHUB_API_URL", "github.api_url"},
	{"BUILDLENS_GITHUB_WEB_URL", "github.web_url"},
	{"GITLAB_TOKEN", "gitlab.token"},
	{"BUILDLENS_GITLAB_TOKEN", "gitlab.token"},
	{"BUILDLENS_GITLAB_BASE_URL", "gitlab.base_url"},
	{"BUILDLENS_LINES_AROUND_RELATED", "lines_around_related"},
	{"BUILDLENS_WORK_DIR", "work_dir"},
	{"BUILDLENS_SOURCE_DIR", "source_dir"},
	{"BUILDLENS_MANIFEST_DIR", "manifest_dir"},
	{"BUILDLENS_LOG_FILE", "log_file"},
	{"BUILDLENS_LOG_LEVEL", "log_level"},
	{"BUILDLENS_FORMAT", "format"},
	{"BUILDLENS_SETTINGS_FILE", "settings_file"},
	{"BUILDLENS_XCODE_DEFAULT", "xcode.default"},
	{"ANDROID_HOME", "android.home"},
	{"BUILDLENS_ANDROID_HOME", "android.home"},
}

// FromEnv reads the config values present in an environment. Values that
// fail to parse are errors naming the variable.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	for _, e := range envKeys {
		v, ok := lookup(e.env)
		if !ok || v == "" {
			continue
		}
		next, err := SetField(cfg, e.key, v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "environment variable %s", e.env)
		}
		cfg = next
	}
	return cfg, nil
}

// Merge returns c with every non-zero value of src applied. Neither c nor
// src is modified.
func (c Config) Merge(src Config) Config {
	out := c
	out.Xcode.Versions = copyMap(c.Xcode.Versions)

	if src.GitHub.APIURL != "" {
		out.GitHub.APIURL = src.GitHub.APIURL
	}
	if src.GitHub.WebURL != "" {
		out.GitHub.WebURL = src.GitHub.WebURL
	}
	if src.GitHub.Token != "" {
		out.GitHub.Token = src.GitHub.Token
	}
	if src.GitLab.BaseURL != "" {
		out.GitLab.BaseURL = src.GitLab.BaseURL
	}
	if src.GitLab.Token != "" {
		out.GitLab.Token = src.GitLab.Token
	}
	if src.LinesAroundRelated > 0 {
		out.LinesAroundRelated = src.LinesAroundRelated
	}
	if src.WorkDir != "" {
		out.WorkDir = src.WorkDir
	}
	if src.SourceDir != "" {
		out.SourceDir = src.SourceDir
	}
	if src.ManifestDir != "" {
		out.ManifestDir = src.ManifestDir
	}
	if src.LogFile != "" {
		out.LogFile = src.LogFile
	}
	if src.LogLevel != "" {
		out.LogLevel = src.LogLevel
	}
	if src.Format != "" {
		out.Format = src.Format
	}
	if src.SettingsFile != "" {
		out.SettingsFile = src.SettingsFile
	}
	if src.Xcode.Default != "" {
		out.Xcode.Default = src.Xcode.Default
	}
	for name, path := range src.Xcode.Versions {
		if out.Xcode.Versions == nil {
			out.Xcode.Versions = map[string]string{}
		}
		out.Xcode.Versions[name] = path
	}
	if src.Android.Home != "" {
		out.Android.Home = src.Android.Home
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys lists the keys accepted by SetField. xcode.versions.<name> is also
// accepted.
func Keys() []string {
	return []string{
		"github.api_url", "github.web_url", "github.token",
		"gitlab.base_url", "gitlab.token",
		"lines_around_related",
		"work_dir", "source_dir", "manifest_dir",
		"log_file", "log_level", "format", "settings_file",
		"xcode.default", "android.home",
	}
}

// SetField returns a copy of cfg with a single field set by key name.
// Returns ErrUnknownKey if key is unknown.
func SetField(cfg Config, key, value string) (Config, error) {
	out := cfg.Merge(Config{})
	switch key {
	case "github.api_url":
		out.GitHub.APIURL = value
	case "github.web_url":
		out.GitHub.WebURL = value
	case "github.token":
		out.GitHub.Token = value
	case "gitlab.base_url":
		out.GitLab.BaseURL = value
	case "gitlab.token":
		out.GitLab.Token = value
	case "lines_around_related":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return cfg, errors.WithHint(
				errors.Newf("lines_around_related must be a non-negative integer, got %q", value),
				"the default is 20",
			)
		}
		out.LinesAroundRelated = n
	case "work_dir":
		out.WorkDir = value
	case "source_dir":
		out.SourceDir = value
	case "manifest_dir":
		out.ManifestDir = value
	case "log_file":
		out.LogFile = value
	case "log_level":
		out.LogLevel = value
	case "format":
		out.Format = value
	case "settings_file":
		out.SettingsFile = value
	case "xcode.default":
		out.Xcode.Default = value
	case "android.home":
		out.Android.Home = value
	default:
		name, ok := strings.CutPrefix(key, "xcode.versions.")
		if !ok || name == "" {
			return cfg, errors.WithHint(
				errors.Wrapf(ErrUnknownKey, "%s", key),
				"valid keys: "+strings.Join(Keys(), ", ")+", xcode.versions.<name>",
			)
		}
		if out.Xcode.Versions == nil {
			out.Xcode.Versions = map[string]string{}
		}
		out.Xcode.Versions[name] = value
	}
	return out, nil
}

// Redacted returns a copy of cfg with credentials masked, for display.
func (c Config) Redacted() Config {
	out := c.Merge(Config{})
	if out.GitHub.Token != "" {
		out.GitHub.Token = "********"
	}
	if out.GitLab.Token != "" {
		out.GitLab.Token = "********"
	}
	return out
}
