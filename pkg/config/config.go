package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

const (
	FileName     = "scrapinghub-mcp.toml"
	APIKeyEnvVar = "SCRAPINGHUB_API_KEY"
)

const (
	safetyExtraNonMutating = "extra_non_mutating"
	safetyBlockNonMutating = "block_non_mutating"
)

// AuthConfig is the [auth] table.
type AuthConfig struct {
	APIKey string `toml:"api_key,omitempty"`
	// EnvFile is relative to the directory of the configuration file unless absolute.
	EnvFile string `toml:"env_file,omitempty"`
}

// SafetyConfig is the [safety] table.
// Identifiers in BlockNonMutating always win over the baseline and ExtraNonMutating.
type SafetyConfig struct {
	ExtraNonMutating []string
	BlockNonMutating []string
}

type CORSConfig struct {
	Origins []string `toml:"origins,omitempty"`
	MaxAge  int      `toml:"max_age,omitempty"`
}

// ServerConfig is the [server] table, only used by the HTTP transport.
type ServerConfig struct {
	Port string      `toml:"port,omitempty"`
	CORS *CORSConfig `toml:"cors,omitempty"`
}

// StaticConfig is the parsed content of a scrapinghub-mcp.toml file.
type StaticConfig struct {
	Auth   AuthConfig
	Safety SafetyConfig
	Server ServerConfig

	// configDirPath is the directory containing the file, used to resolve relative paths.
	configDirPath string
}

type rawConfig struct {
	Auth   AuthConfig     `toml:"auth"`
	Safety toml.Primitive `toml:"safety"`
	Server ServerConfig   `toml:"server"`
}

// Read reads and validates the configuration file at configPath.
func Read(fs afero.Fs, configPath string) (*StaticConfig, error) {
	configData, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return nil, newError(configPath, err, "failed to read configuration file")
	}
	cfg, err := ReadToml(configData)
	if err != nil {
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = configPath
			return nil, cfgErr
		}
		return nil, newError(configPath, err, "invalid configuration")
	}
	cfg.configDirPath = filepath.Dir(configPath)
	return cfg, nil
}

// ReadToml parses configuration data. Relative paths are resolved against the working directory.
func ReadToml(configData []byte) (*StaticConfig, error) {
	var raw rawConfig
	md, err := toml.Decode(string(configData), &raw)
	if err != nil {
		return nil, newError("", err, "invalid TOML")
	}
	cfg := &StaticConfig{Auth: raw.Auth, Server: raw.Server}
	if md.IsDefined("safety") {
		safety, err := decodeSafety(md, raw.Safety)
		if err != nil {
			return nil, err
		}
		cfg.Safety = safety
	}
	return cfg, nil
}

// decodeSafety validates the [safety] table strictly, lists are never coerced.
func decodeSafety(md toml.MetaData, primitive toml.Primitive) (SafetyConfig, error) {
	var table map[string]any
	if err := md.PrimitiveDecode(primitive, &table); err != nil {
		return SafetyConfig{}, newError("", err, "[safety] must be a table")
	}
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var safety SafetyConfig
	for _, key := range keys {
		values, err := stringList(key, table[key])
		if err != nil {
			return SafetyConfig{}, err
		}
		switch key {
		case safetyExtraNonMutating:
			safety.ExtraNonMutating = values
		case safetyBlockNonMutating:
			safety.BlockNonMutating = values
		default:
			return SafetyConfig{}, newError("", nil, "unknown key safety.%s", key)
		}
	}
	return safety, nil
}

func stringList(key string, value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, newError("", nil, "safety.%s must be a list of strings, got %T", key, value)
	}
	values := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, newError("", nil, "safety.%s[%d] must be a string, got %T", key, i, item)
		}
		if s == "" {
			return nil, newError("", nil, "safety.%s[%d] must not be empty", key, i)
		}
		values = append(values, s)
	}
	return values, nil
}

// EnvFilePath returns the absolute path of auth.env_file, or "" when unset.
func (c *StaticConfig) EnvFilePath() string {
	if c.Auth.EnvFile == "" {
		return ""
	}
	if filepath.IsAbs(c.Auth.EnvFile) || c.configDirPath == "" {
		return c.Auth.EnvFile
	}
	return filepath.Join(c.configDirPath, c.Auth.EnvFile)
}

func (c *StaticConfig) String() string {
	return fmt.Sprintf("StaticConfig{env_file=%q, extra_non_mutating=%v, block_non_mutating=%v}",
		c.Auth.EnvFile, c.Safety.ExtraNonMutating, c.Safety.BlockNonMutating)
}
