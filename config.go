package pgsync

import (
	"fmt"
	"os"
	"regexp"

	"github.com/nullbound/pgsync/internal/pgerr"
	"gopkg.in/yaml.v3"
)

// Config is a YAML-loadable alternative to a postgresql:// URI for
// supplying a single connection's parameters, letting a deployment keep
// credentials in a mounted file rather than a command line or process
// environment.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"dbname"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars expands ${VAR_NAME} references in a config file against
// the process environment. A config file isn't a shell script, so an unset
// variable isn't an error — it's left as the literal ${VAR_NAME} text
// rather than this function guessing at a default. In a numeric field such
// as port that text then fails to unmarshal; in a string field it is kept
// as the field's value.
func substituteEnvVars(data []byte) []byte {
	matches := envVarPattern.FindAllSubmatchIndex(data, -1)
	if matches == nil {
		return data
	}
	var out []byte
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		nameStart, nameEnd := m[2], m[3]
		out = append(out, data[prev:start]...)
		if val, ok := os.LookupEnv(string(data[nameStart:nameEnd])); ok {
			out = append(out, val...)
		} else {
			out = append(out, data[start:end]...)
		}
		prev = end
	}
	return append(out, data[prev:]...)
}

// LoadConfig reads and parses a YAML file at path into a Config, expanding
// ${VAR} references against the process environment before unmarshaling.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pgsync: reading config file: %w", err)
	}
	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("pgsync: parsing config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Host == "" {
		return &pgerr.InvalidConnectionStringError{Input: "<config file>", Reason: "host is required"}
	}
	if cfg.Database == "" {
		return &pgerr.InvalidConnectionStringError{Input: "<config file>", Reason: "dbname is required"}
	}
	if cfg.User == "" {
		return &pgerr.InvalidConnectionStringError{Input: "<config file>", Reason: "user is required"}
	}
	return nil
}

// ConnString converts cfg to the same ConnString a URI would parse to, so
// it can be reassembled and passed to Connect.
func (cfg *Config) ConnString() ConnString {
	return ConnString{
		User:     cfg.User,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
	}
}
