// Package config resolves the deploy target and credentials from flags, the
// environment and a persisted local file, in that order of priority.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	giturl "github.com/kubescape/go-git-url"
	"github.com/pkg/errors"

	"github.com/shaun/pagesdeploy/internal/publish"
)

const (
	DefaultFile      = ".pagesdeploy.json"
	DefaultBranch    = "gh-pages"
	DefaultPath      = "index.html"
	DefaultAPIURL    = "https://api.github.com/"
	DefaultMaxSize   = "1MiB"
	DefaultFileLimit = 100
)

type Config struct {
	Token     string        `json:"token" yaml:"token" validate:"required"`
	Owner     string        `json:"owner" yaml:"owner" validate:"required"`
	Repo      string        `json:"repo" yaml:"repo" validate:"required"`
	Branch    string        `json:"branch,omitempty" yaml:"branch,omitempty" validate:"required"`
	Path      string        `json:"path,omitempty" yaml:"path,omitempty" validate:"required"`
	APIURL    string        `json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"omitempty,url"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	MaxSize   string        `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	FileLimit int           `json:"file_limit,omitempty" yaml:"file_limit,omitempty" validate:"gte=0"`
	Retries   int           `json:"retries,omitempty" yaml:"retries,omitempty" validate:"gte=0"`
}

// Target returns the publish target described by c.
func (c *Config) Target() publish.Target {
	return publish.Target{Owner: c.Owner, Repo: c.Repo, Branch: c.Branch}
}

// MaxBytes parses MaxSize.
func (c *Config) MaxBytes() (int64, error) {
	size := c.MaxSize
	if size == "" {
		size = DefaultMaxSize
	}
	b, err := units.ParseBase2Bytes(size)
	if err != nil {
		return 0, errors.Wrapf(err, "parse max size %q", size)
	}
	return int64(b), nil
}

// Flags are command-line overrides. Empty values are unset.
type Flags struct {
	Token   string
	Owner   string
	Repo    string
	Branch  string
	Path    string
	APIURL  string
	RepoURL string
	Timeout time.Duration
	// Retries is nil when not given, so an explicit 0 still overrides.
	Retries *int
}

type Source struct {
	// File is the persisted config; DefaultFile when empty.
	File string
	// EnvFile is loaded into the process environment first when present.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load resolves the configuration without validating it.
func Load(src Source, flags Flags) (*Config, error) {
	if src.EnvFile != "" {
		// A missing .env is fine.
		_ = godotenv.Load(src.EnvFile)
	}
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	file := src.File
	if file == "" {
		file = DefaultFile
	}

	cfg, err := ReadFile(file)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}

	env := Flags{
		Token:  firstOf(getenv("GH_TOKEN"), getenv("GITHUB_TOKEN")),
		Owner:  getenv("GH_OWNER"),
		Repo:   getenv("GH_REPO"),
		Branch: getenv("GH_BRANCH"),
		Path:   getenv("GH_PATH"),
		APIURL: getenv("GH_API_URL"),
	}
	if v := getenv("GH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "parse GH_RETRIES")
		}
		env.Retries = &n
	}
	if err := cfg.apply(env); err != nil {
		return nil, err
	}
	if err := cfg.apply(flags); err != nil {
		return nil, err
	}

	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = publish.DefaultTimeout
	}
	if cfg.MaxSize == "" {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.FileLimit == 0 {
		cfg.FileLimit = DefaultFileLimit
	}
	return cfg, nil
}

func (c *Config) apply(f Flags) error {
	if f.RepoURL != "" {
		u, err := giturl.NewGitURL(f.RepoURL)
		if err != nil {
			return errors.Wrapf(err, "parse repository url %q", f.RepoURL)
		}
		c.Owner, c.Repo = u.GetOwnerName(), u.GetRepoName()
		if b := u.GetBranchName(); b != "" {
			c.Branch = b
		}
		if p := u.GetPath(); p != "" {
			c.Path = p
		}
	}
	set(&c.Token, f.Token)
	set(&c.Owner, f.Owner)
	set(&c.Repo, f.Repo)
	set(&c.Branch, f.Branch)
	set(&c.Path, f.Path)
	set(&c.APIURL, f.APIURL)
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.Retries != nil {
		c.Retries = *f.Retries
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Validate checks that everything a publish needs is present. The error is
// a ConfigError failure naming the offending keys.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		_, err = c.MaxBytes()
		if err != nil {
			return &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &publish.Failure{Kind: publish.ConfigError, Message: err.Error(), Err: err}
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(invalid, ", "))
	}
	return &publish.Failure{Kind: publish.ConfigError, Message: strings.Join(parts, "; "), Err: err}
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstOf(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
