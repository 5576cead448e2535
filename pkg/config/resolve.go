package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

// KeySource records which level supplied the API key.
type KeySource string

const (
	KeySourceConfig      KeySource = "config"
	KeySourceEnvFile     KeySource = "env_file"
	KeySourceEnvironment KeySource = "environment"
)

// Resolved is the outcome of configuration resolution. It is built once at startup and
// never modified afterwards.
type Resolved struct {
	Auth      AuthConfig
	Safety    SafetyConfig
	Server    ServerConfig
	KeySource KeySource
	// Path of the configuration file that was used, empty when none was found.
	Path   string
	Layout Layout
}

type Resolver struct {
	Fs     afero.Fs
	Env    Environment
	Layout Layout
	// ConfigPath bypasses the search when set.
	ConfigPath string
}

// NewResolver returns a Resolver over the real filesystem and environment, discovering
// the layout from the working directory and the executable location.
func NewResolver(configPath string) (*Resolver, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, newError("", err, "failed to determine working directory")
	}
	var startDirs []string
	if exe, err := os.Executable(); err == nil {
		startDirs = append(startDirs, filepath.Dir(exe))
	}
	fs := afero.NewOsFs()
	return &Resolver{
		Fs:         fs,
		Env:        OSEnvironment(),
		Layout:     DiscoverLayout(fs, wd, startDirs...),
		ConfigPath: configPath,
	}, nil
}

// Locate returns the first configuration file in the search order, or "" if none exists.
func (r *Resolver) Locate() (string, error) {
	if r.ConfigPath != "" {
		if exists, _ := afero.Exists(r.Fs, r.ConfigPath); !exists {
			return "", newError(r.ConfigPath, nil, "configuration file does not exist")
		}
		return r.ConfigPath, nil
	}
	for _, dir := range r.Layout.SearchDirs() {
		candidate := filepath.Join(dir, FileName)
		isDir, err := afero.IsDir(r.Fs, candidate)
		if err == nil && !isDir {
			return candidate, nil
		}
	}
	return "", nil
}

// Resolve locates and parses the configuration and resolves the API key.
// All returned errors are *Error.
func (r *Resolver) Resolve() (*Resolved, error) {
	path, err := r.Locate()
	if err != nil {
		return nil, err
	}
	resolved := &Resolved{Path: path, Layout: r.Layout}
	if path == "" {
		klog.V(1).Infof("No configuration file found in %v, using %s", r.Layout.SearchDirs(), APIKeyEnvVar)
		if key := r.lookup(APIKeyEnvVar); key != "" {
			resolved.Auth.APIKey = key
			resolved.KeySource = KeySourceEnvironment
			return resolved, nil
		}
		return nil, missingAPIKeyError("")
	}

	cfg, err := Read(r.Fs, path)
	if err != nil {
		return nil, err
	}
	resolved.Auth.EnvFile = cfg.Auth.EnvFile
	resolved.Safety = cfg.Safety
	resolved.Server = cfg.Server

	var envFileKey string
	if envFile := cfg.EnvFilePath(); envFile != "" {
		if envFileKey, err = r.loadEnvFile(path, envFile); err != nil {
			return nil, err
		}
	}

	switch {
	case cfg.Auth.APIKey != "":
		resolved.Auth.APIKey = cfg.Auth.APIKey
		resolved.KeySource = KeySourceConfig
	case envFileKey != "":
		resolved.Auth.APIKey = envFileKey
		resolved.KeySource = KeySourceEnvFile
	default:
		resolved.Auth.APIKey = r.lookup(APIKeyEnvVar)
		resolved.KeySource = KeySourceEnvironment
	}
	if resolved.Auth.APIKey == "" {
		return nil, missingAPIKeyError(path)
	}

	klog.V(1).InfoS("Resolved configuration", "path", path, "keySource", resolved.KeySource,
		"extraNonMutating", len(resolved.Safety.ExtraNonMutating),
		"blockNonMutating", len(resolved.Safety.BlockNonMutating))
	return resolved, nil
}

// loadEnvFile merges envFile into the environment and returns its API key entry.
// A missing file is not an error.
func (r *Resolver) loadEnvFile(configPath, envFile string) (string, error) {
	entries, err := readEnvFile(r.Fs, envFile)
	if os.IsNotExist(err) {
		klog.V(1).Infof("Configured env_file %s does not exist, skipping", envFile)
		return "", nil
	}
	if err != nil {
		return "", newError(configPath, err, "failed to load env_file %s", envFile)
	}
	set, err := mergeEnv(r.Env, entries)
	if err != nil {
		return "", newError(configPath, err, "failed to apply env_file %s", envFile)
	}
	sort.Strings(set)
	klog.V(2).Infof("Loaded env_file %s, set variables %v", envFile, set)
	return entries[APIKeyEnvVar], nil
}

func (r *Resolver) lookup(key string) string {
	v, _ := r.Env.LookupEnv(key)
	return v
}
