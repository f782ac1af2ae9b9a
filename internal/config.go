package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/logging"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Query modes.
const (
	ModeStatic = "static"
	ModeRemote = "remote"
	ModeLive   = "live"
	ModeSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Notes  NotesConfig       `yaml:"notes"`
	Output OutputConfig      `yaml:"output"`
	Build  BuildConfig       `yaml:"build"`
	Query  QueryConfig       `yaml:"query"`
}

// Validate validates the configuration. An empty query mode is resolved
// from the environment: remote in production, static otherwise.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if c.Query.Mode == "" {
		c.Query.Mode = ModeStatic
		if c.App.Env == EnvProduction {
			c.Query.Mode = ModeRemote
		}
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if c.Query.Mode == ModeSQLite && c.Output.IndexPath == "" {
		return fmt.Errorf("query: mode %q requires output.index_path", ModeSQLite)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	Env       string     `yaml:"env"`
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.In(EnvDevelopment, EnvProduction)),
		validation.Field(&c.LogFormat, validation.In(logging.FormatJSON, logging.FormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig points at the flat directory of exported notes.
type NotesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OutputConfig describes where a build writes its artifacts.
//
// DataPath receives the JSON artifacts, AssetsPath the copied attachment
// folders (empty skips copying) and IndexPath an SQLite copy of the
// catalog (empty skips it). PublicPrefix is the URL prefix attachment
// references are rewritten to.
type OutputConfig struct {
	DataPath     string `yaml:"data_path"`
	AssetsPath   string `yaml:"assets_path"`
	PublicPrefix string `yaml:"public_prefix"`
	IndexPath    string `yaml:"index_path"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataPath, validation.Required),
		validation.Field(&c.PublicPrefix, validation.Required),
	)
}

// BuildConfig tunes the build pipeline.
type BuildConfig struct {
	Concurrency  int `yaml:"concurrency"`
	PreviewLimit int `yaml:"preview_limit"`
	MaxDepth     int `yaml:"max_depth"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(1024)),
		validation.Field(&c.PreviewLimit, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// Options converts the section into catalog builder options.
func (c *BuildConfig) Options(assetsDir string) catalog.Options {
	return catalog.Options{
		Concurrency:  c.Concurrency,
		PreviewLimit: c.PreviewLimit,
		MaxDepth:     c.MaxDepth,
		AssetsDir:    assetsDir,
	}
}

// QueryConfig selects and tunes the read side.
type QueryConfig struct {
	Mode     string `yaml:"mode"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
	Watch    bool   `yaml:"watch"`
}

// Validate validates the query configuration.
func (c *QueryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(ModeStatic, ModeRemote, ModeLive, ModeSQLite)),
		validation.Field(&c.BaseURL, validation.When(c.Mode == ModeRemote, validation.Required)),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(1000)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			Env:       EnvDevelopment,
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path: "./notes",
		},
		Output: OutputConfig{
			DataPath:     "./public/data",
			AssetsPath:   "./public/attachments",
			PublicPrefix: attachment.DefaultPrefix,
		},
		Build: BuildConfig{
			Concurrency:  catalog.DefaultConcurrency,
			PreviewLimit: catalog.DefaultPreviewLimit,
			MaxDepth:     hierarchy.DefaultMaxDepth,
		},
		Query: QueryConfig{
			PageSize: catalog.DefaultPageSize,
		},
	}
}
