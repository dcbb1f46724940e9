package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ReadFile loads a persisted config. JSON unless the extension says YAML.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, nil
}

// Persisted is the subset of Config written by Save.
type Persisted struct {
	Token  string `json:"token" yaml:"token"`
	Owner  string `json:"owner" yaml:"owner"`
	Repo   string `json:"repo" yaml:"repo"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Save writes the target identity and token to path, readable by the owner
// only. Values that equal the defaults are omitted.
func Save(path string, c *Config) error {
	p := Persisted{Token: c.Token, Owner: c.Owner, Repo: c.Repo}
	if c.Branch != DefaultBranch {
		p.Branch = c.Branch
	}
	if c.Path != DefaultPath {
		p.Path = c.Path
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(&p)
	} else {
		data, err = json.MarshalIndent(&p, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "create config dir")
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write config file %s", path)
	}
	return os.Chmod(path, 0o600)
}
