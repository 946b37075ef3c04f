// Package config loads ritual's settings from defaults, an optional YAML file
// and RITUAL_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RITUAL_"

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverBlob     = "blob"
)

// Blob drivers used by DriverBlob.
const (
	BlobFS     = "fs"
	BlobMemory = "memory"
	BlobS3     = "s3"
)

// Config is the full application configuration.
type Config struct {
	Storage Storage `yaml:"storage" envPrefix:"STORAGE_"`
	HTTP    HTTP    `yaml:"http" envPrefix:"HTTP_"`
	Log     Log     `yaml:"log" envPrefix:"LOG_"`
}

// Storage selects and configures the durable backend.
type Storage struct {
	Driver       string   `yaml:"driver" env:"DRIVER" validate:"oneof=file sqlite postgres badger blob"`
	Path         string   `yaml:"path" env:"PATH" validate:"required_if=Driver file"`
	RecoverEmpty bool     `yaml:"recover_empty" env:"RECOVER_EMPTY"`
	SQLite       SQLite   `yaml:"sqlite" envPrefix:"SQLITE_"`
	Postgres     Postgres `yaml:"postgres" envPrefix:"POSTGRES_"`
	Badger       Badger   `yaml:"badger" envPrefix:"BADGER_"`
	Blob         Blob     `yaml:"blob" envPrefix:"BLOB_"`
}

// SQLite configures the sqlite backend.
type SQLite struct {
	Path string `yaml:"path" env:"PATH"`
}

// Postgres configures the postgres backend.
type Postgres struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

// Badger configures the badger backend.
type Badger struct {
	Path           string        `yaml:"path" env:"PATH"`
	InMemory       bool          `yaml:"in_memory" env:"IN_MEMORY"`
	SyncWrites     bool          `yaml:"sync_writes" env:"SYNC_WRITES"`
	GCInterval     time.Duration `yaml:"gc_interval" env:"GC_INTERVAL" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" env:"GC_DISCARD_RATIO" validate:"gte=0,lt=1"`
}

// Blob configures the blob-document backend.
type Blob struct {
	Driver string `yaml:"driver" env:"DRIVER" validate:"oneof=fs memory s3"`
	Key    string `yaml:"key" env:"KEY" validate:"required"`
	Root   string `yaml:"root" env:"ROOT"`
	S3     S3     `yaml:"s3" envPrefix:"S3_"`
}

// S3 configures the S3 blob driver. Empty credentials use the AWS default chain.
type S3 struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Region          string `yaml:"region" env:"REGION"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"session_token" env:"SESSION_TOKEN"`
	PathStyle       bool   `yaml:"path_style" env:"PATH_STYLE"`
}

// HTTP configures `ritual serve`.
type HTTP struct {
	Addr string `yaml:"addr" env:"ADDR" validate:"required,hostname_port"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=text json"`
}

// DefaultPath is the document location used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "db.json")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver: DriverFile,
			Path:   DefaultPath(),
			SQLite: SQLite{Path: "ritual.db"},
			Postgres: Postgres{
				DSN: "postgres://localhost/ritual?sslmode=disable",
			},
			Badger: Badger{Path: "ritual.badger", GCInterval: 10 * time.Minute, GCDiscardRatio: 0.5},
			Blob: Blob{
				Driver: BlobFS,
				Key:    "ritual/state.json",
				Root:   "./blobdata",
				S3:     S3{Region: "us-east-1"},
			},
		},
		HTTP: HTTP{Addr: "127.0.0.1:8080"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment; nil reads the process
// environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStorage, Storage{})
	return v
}

// validateStorage checks settings that depend on the selected driver.
func validateStorage(sl validator.StructLevel) {
	s := sl.Current().Interface().(Storage)
	switch s.Driver {
	case DriverPostgres:
		if s.Postgres.DSN == "" {
			sl.ReportError(s.Postgres.DSN, "Postgres.DSN", "DSN", "required_with_driver", s.Driver)
		}
	case DriverBadger:
		if !s.Badger.InMemory && s.Badger.Path == "" {
			sl.ReportError(s.Badger.Path, "Badger.Path", "Path", "required_with_driver", s.Driver)
		}
	case DriverBlob:
		if s.Blob.Driver == BlobS3 && s.Blob.S3.Bucket == "" {
			sl.ReportError(s.Blob.S3.Bucket, "Blob.S3.Bucket", "Bucket", "required_with_driver", s.Blob.Driver)
		}
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
