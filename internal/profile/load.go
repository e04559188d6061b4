package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// serverFile is the on-disk layout of a server definition file.
type serverFile struct {
	Servers map[string]Raw `yaml:"servers"`
}

// LoadEnv loads variables from a dotenv file into the process environment.
// A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadFile reads server definitions from a YAML file.
func LoadFile(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server file: %w", err)
	}

	profiles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server file %s: %w", path, err)
	}
	return profiles, nil
}

// Parse reads server definitions from YAML data.
func Parse(data []byte) (map[string]Profile, error) {
	var f serverFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid server file format: %w", err)
	}
	return FromRaw(f.Servers), nil
}

// FromRaw assembles named raw definitions into profiles. Credentials come
// from the definition itself, then from LFTPCMD_<NAME>_USERNAME and
// LFTPCMD_<NAME>_PASSWORD.
func FromRaw(raws map[string]Raw) map[string]Profile {
	profiles := make(map[string]Profile, len(raws))
	for name, raw := range raws {
		p := Assemble(raw, resolveCredentials(name, raw.Credentials))
		p.Name = name
		profiles[name] = p
	}
	return profiles
}

func resolveCredentials(name string, creds *Credentials) *Credentials {
	var out Credentials
	if creds != nil {
		out = *creds
	}

	prefix := "LFTPCMD_" + envName(name) + "_"
	if out.Username == "" {
		out.Username = os.Getenv(prefix + "USERNAME")
	}
	if out.Password == "" {
		out.Password = os.Getenv(prefix + "PASSWORD")
	}

	if creds == nil && out.Username == "" && out.Password == "" {
		return nil
	}
	return &out
}

// envName upper-cases a server name and replaces anything that is not a
// letter or digit with '_'.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
