// Package config loads the loader configuration from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/cache"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/pipeline"
)

// Environment variables overriding file values.
const (
	EnvCacheDir    = "REMOTE_SOURCEMAP_CACHE_DIR"
	EnvSourceDir   = "REMOTE_SOURCEMAP_SOURCE_DIR"
	EnvConcurrency = "REMOTE_SOURCEMAP_CONCURRENCY"
)

// Config is the configuration file format.
type Config struct {
	SourceDir       *string    `json:"sourceDir,omitempty" yaml:"sourceDir,omitempty"`
	CacheDirectory  *CacheDir  `json:"cacheDirectory,omitempty" yaml:"cacheDirectory,omitempty"`
	Exclude         FilterList `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	IncludeContent  *Filter    `json:"includeContent,omitempty" yaml:"includeContent,omitempty"`
	EmitContent     *Filter    `json:"emitContent,omitempty" yaml:"emitContent,omitempty"`
	PreFetchRewrite []Rewrite  `json:"preFetchRewrite,omitempty" yaml:"preFetchRewrite,omitempty"`
	Concurrency     int        `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	FetchTimeout    Duration   `json:"fetchTimeout,omitempty" yaml:"fetchTimeout,omitempty"`
	RootContext     string     `json:"rootContext,omitempty" yaml:"rootContext,omitempty"`
}

// CacheDir is a cache directory, or disabled when the file says false.
type CacheDir struct {
	Dir      string
	Disabled bool
}

func (c *CacheDir) UnmarshalYAML(bs []byte) error {
	var v any
	if err := yaml.Unmarshal(bs, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case bool:
		if v {
			return fmt.Errorf("cacheDirectory must be a path or false")
		}
		*c = CacheDir{Disabled: true}
	case string:
		*c = CacheDir{Dir: v, Disabled: v == ""}
	case nil:
		*c = CacheDir{}
	default:
		return fmt.Errorf("cacheDirectory must be a path or false, got %T", v)
	}
	return nil
}

func (c CacheDir) MarshalYAML() (any, error) {
	if c.Disabled {
		return false, nil
	}
	return c.Dir, nil
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(val)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Rewrite replaces matches of Pattern in a source before it is fetched.
type Rewrite struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`
}

// ParseFile reads and validates a configuration file.
func ParseFile(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return Parse(bs)
}

// Parse validates bs against the schema and decodes it.
func Parse(bs []byte) (*Config, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var c Config
	if len(strings.TrimSpace(string(bs))) == 0 {
		return &c, nil
	}
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for i, r := range c.PreFetchRewrite {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return nil, fmt.Errorf("invalid preFetchRewrite[%d] pattern: %w", i, err)
		}
	}
	return &c, nil
}

// LoadEnv loads .env files, ignoring missing ones, and applies the
// environment overrides to c.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if v, ok := os.LookupEnv(EnvCacheDir); ok {
		c.CacheDirectory = &CacheDir{Dir: v, Disabled: v == ""}
	}
	if v, ok := os.LookupEnv(EnvSourceDir); ok {
		c.SourceDir = &v
	}
	if v := strings.TrimSpace(os.Getenv(EnvConcurrency)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s %q", EnvConcurrency, v)
		}
		c.Concurrency = n
	}
	return nil
}

// Options converts c into pipeline options. Fields left unset keep the
// values of pipeline.DefaultOptions.
func (c *Config) Options() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	if c.SourceDir != nil {
		opts.SourceDir = *c.SourceDir
	}

	if c.CacheDirectory != nil {
		switch {
		case c.CacheDirectory.Disabled:
			opts.CacheDir = ""
		case c.CacheDirectory.Dir != "":
			opts.CacheDir = c.CacheDirectory.Dir
		default:
			opts.CacheDir = cache.DefaultDir
		}
	}

	opts.Exclude = filter.CompileList(c.Exclude.Specs(), filter.Never)
	opts.IncludeContent = filter.Compile(c.IncludeContent.Spec(), filter.Always)
	opts.EmitContent = filter.Compile(c.EmitContent.Spec(), filter.Always)

	if len(c.PreFetchRewrite) > 0 {
		t, err := rewriter(c.PreFetchRewrite)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.PreFetchTransform = t
	}

	opts.Concurrency = c.Concurrency
	opts.FetchTimeout = time.Duration(c.FetchTimeout)
	return opts, nil
}

// rewriter applies every rule in order. A source rewritten to the empty
// string is excluded by the pipeline.
func rewriter(rules []Rewrite) (func(string) string, error) {
	type rule struct {
		re   *regexp.Regexp
		repl string
	}
	compiled := make([]rule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid preFetchRewrite[%d] pattern: %w", i, err)
		}
		compiled[i] = rule{re: re, repl: r.Replacement}
	}
	return func(s string) string {
		for _, r := range compiled {
			s = r.re.ReplaceAllString(s, r.repl)
		}
		return s
	}, nil
}
