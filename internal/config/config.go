// Package config loads the pbsctl configuration file
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/log"
	"github.com/CZERTAINLY/pbsctl/pbs"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	EnvConfig = "PBSCTL_CONFIG"
	FileName  = "pbsctl.yaml"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version  int          `json:"version" yaml:"version"` // fixed 0 for now
	Binaries pbs.Binaries `json:"binaries" yaml:"binaries"`
	Timeout  string       `json:"timeout" yaml:"timeout"` // Go duration, e.g. 60s
	Env      []string     `json:"env,omitempty" yaml:"env,omitempty"`
	Log      Log          `json:"log" yaml:"log"`
	Exporter Exporter     `json:"exporter" yaml:"exporter"`
	Watch    Watch        `json:"watch" yaml:"watch"`
}

type Log struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Format  string `json:"format" yaml:"format"` // json | text
}

type Exporter struct {
	Listen        string `json:"listen" yaml:"listen"`
	ScrapeTimeout string `json:"scrape_timeout" yaml:"scrape_timeout"`
}

// Watch configures the periodic snapshots. Schedule is either a cron
// expression or an ISO-8601 duration.
type Watch struct {
	Schedule string `json:"schedule" yaml:"schedule"`
	Dir      string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Stdout   bool   `json:"stdout" yaml:"stdout"`
}

// DefaultConfig is used when there is no configuration file
func DefaultConfig(ctx context.Context) Config {
	cfg, err := decode(ctx, schema)
	if err != nil {
		// the schema has defaults for all fields
		panic(err)
	}
	return *cfg
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
// Empty input results in the default configuration.
func LoadConfig(ctx context.Context, r io.Reader) (*Config, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(src)) == 0 {
		return decode(ctx, schema)
	}

	yamlFile, err := yaml.Extract("config.yaml", src)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)
	return decode(ctx, schema.Unify(yamlValue))
}

func decode(ctx context.Context, unified cue.Value) (*Config, error) {
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "configuration loaded", "config", out)
	return &out, nil
}

// validate checks values the schema can't express
func (c Config) validate() error {
	var errs []error
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}
	if _, err := time.ParseDuration(c.Exporter.ScrapeTimeout); err != nil {
		errs = append(errs, fmt.Errorf("exporter.scrape_timeout: %w", err))
	}
	if _, err := ParseSchedule(c.Watch.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("watch.schedule: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c Config) ScrapeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Exporter.ScrapeTimeout)
	return d
}

// ClientOptions configure pbs.Client according to the configuration
func (c Config) ClientOptions() []pbs.Option {
	return []pbs.Option{
		pbs.WithBinaries(c.Binaries),
		pbs.WithTimeout(c.TimeoutDuration()),
		pbs.WithEnv(c.Env...),
	}
}

// Logger returns a logger writing to w
func (c Config) Logger(w io.Writer) *slog.Logger {
	return log.New(w, c.Log.Verbose, c.Log.Format)
}

// Lookup finds the configuration file. The order is the PBSCTL_CONFIG
// environment variable, flag, ./pbsctl.yaml and pbsctl/pbsctl.yaml in the
// user configuration directory. Explicitly requested files must exist.
// Empty path is returned when no file was found.
func Lookup(flag string) (string, error) {
	for _, explicit := range []string{os.Getenv(EnvConfig), flag} {
		if explicit == "" {
			continue
		}
		if !exists(explicit) {
			return "", fmt.Errorf("config file %s: %w", explicit, os.ErrNotExist)
		}
		return explicit, nil
	}

	candidates := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "pbsctl", FileName))
	}
	for _, path := range candidates {
		if exists(path) {
			return path, nil
		}
	}
	return "", nil
}

// Load finds and loads the configuration, see Lookup. The default
// configuration is returned when there is no file.
func Load(ctx context.Context, flag string) (Config, string, error) {
	path, err := Lookup(flag)
	if err != nil {
		return Config{}, "", err
	}
	if path == "" {
		return DefaultConfig(ctx), "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, path, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := LoadConfig(ctx, f)
	if err != nil {
		return Config{}, path, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return *cfg, path, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
