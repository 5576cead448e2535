package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Environment is the process environment as seen by the resolver.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
}

type osEnvironment struct{}

func (osEnvironment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnvironment) Setenv(key, value string) error      { return os.Setenv(key, value) }

// OSEnvironment returns the real process environment.
func OSEnvironment() Environment {
	return osEnvironment{}
}

// MapEnvironment is an in-memory Environment.
type MapEnvironment map[string]string

func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnvironment) Setenv(key, value string) error {
	m[key] = value
	return nil
}

// readEnvFile parses a KEY=VALUE file.
func readEnvFile(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return godotenv.Parse(f)
}

// mergeEnv sets every entry that is not already present in env and returns the keys it set.
func mergeEnv(env Environment, entries map[string]string) ([]string, error) {
	var set []string
	for key, value := range entries {
		if _, ok := env.LookupEnv(key); ok {
			continue
		}
		if err := env.Setenv(key, value); err != nil {
			return set, err
		}
		set = append(set, key)
	}
	return set, nil
}
