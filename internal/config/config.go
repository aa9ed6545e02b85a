// Package config loads the service settings from a YAML file.
//
// Settings are read once at process start and passed explicitly to every
// component that needs them; nothing in this package keeps global state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when no path is given.
const DefaultPath = "configuration.yaml"

// Settings is the typed form of the configuration file.
type Settings struct {
	Database        DatabaseSettings
	ApplicationPort uint16
	ApplicationHost string
	Log             LogSettings
	Tracing         TracingSettings
	Email           EmailSettings
}

// DatabaseSettings holds the PostgreSQL connection parameters.
type DatabaseSettings struct {
	Username     string
	Password     string
	Host         string
	Port         uint16
	DatabaseName string
	RequireSSL   bool
}

type LogSettings struct {
	Level  string
	Format string
}

type TracingSettings struct {
	Stdout bool
}

// EmailSettings configures the welcome mail. An empty SMTPHost disables it.
type EmailSettings struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	Sender   string
}

// Enabled reports whether enough is configured to send mail.
func (e EmailSettings) Enabled() bool {
	return e.SMTPHost != "" && e.Sender != ""
}

// Address is the host:port the HTTP server binds to.
func (s Settings) Address() string {
	return net.JoinHostPort(s.ApplicationHost, strconv.Itoa(int(s.ApplicationPort)))
}

// ConnectionString returns the URI for the configured database.
func (d DatabaseSettings) ConnectionString() string {
	return d.connectionURL("/" + d.DatabaseName)
}

// ConnectionStringWithoutDB returns the URI for the server itself. It is used
// to create a database before it exists.
func (d DatabaseSettings) ConnectionStringWithoutDB() string {
	return d.connectionURL("")
}

func (d DatabaseSettings) connectionURL(path string) string {
	sslMode := "disable"
	if d.RequireSSL {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port))),
		Path:     path,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// fileSettings mirrors the YAML layout. Pointers tell a missing key apart
// from an explicit zero value.
type fileSettings struct {
	Database        *fileDatabase `yaml:"database"`
	ApplicationPort *int          `yaml:"application_port"`
	ApplicationHost string        `yaml:"application_host"`
	Log             struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Tracing struct {
		Stdout bool `yaml:"stdout"`
	} `yaml:"tracing"`
	Email struct {
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Sender   string `yaml:"sender"`
	} `yaml:"email"`
}

type fileDatabase struct {
	Username     *string `yaml:"username"`
	Password     *string `yaml:"password"`
	Host         *string `yaml:"host"`
	Port         *int    `yaml:"port"`
	DatabaseName *string `yaml:"database_name"`
	RequireSSL   bool    `yaml:"require_ssl"`
}

// Load reads the file at path. It fails if the file is missing, is not valid
// YAML, carries unknown keys or lacks a required field.
func Load(path string) (Settings, error) {
	raw, err := readFile(path)
	if err != nil {
		return Settings{}, err
	}
	return raw.settings()
}

// LoadWithEnv is Load with NEWSLETTER_* environment overrides applied before
// validation.
func LoadWithEnv(path string) (Settings, error) {
	raw, err := readFile(path)
	if err != nil {
		return Settings{}, err
	}
	if err := raw.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return raw.settings()
}

func readFile(path string) (*fileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*fileSettings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw fileSettings
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return &raw, nil
}

func (f *fileSettings) settings() (Settings, error) {
	v := newValidator()

	s := Settings{
		ApplicationHost: f.ApplicationHost,
		Log: LogSettings{
			Level:  f.Log.Level,
			Format: f.Log.Format,
		},
		Tracing: TracingSettings{Stdout: f.Tracing.Stdout},
		Email: EmailSettings{
			SMTPHost: f.Email.SMTPHost,
			SMTPPort: f.Email.SMTPPort,
			Username: f.Email.Username,
			Password: f.Email.Password,
			Sender:   f.Email.Sender,
		},
	}
	if s.ApplicationHost == "" {
		s.ApplicationHost = "127.0.0.1"
	}
	if s.Email.SMTPPort == 0 {
		s.Email.SMTPPort = 587
	}

	s.ApplicationPort = v.port("application_port", f.ApplicationPort, 0)

	if f.Database == nil {
		v.missing("database")
	} else {
		db := f.Database
		s.Database = DatabaseSettings{
			Username:     v.str("database.username", db.Username),
			Password:     v.str("database.password", db.Password),
			Host:         v.nonEmpty("database.host", db.Host),
			Port:         v.port("database.port", db.Port, 1),
			DatabaseName: v.nonEmpty("database.database_name", db.DatabaseName),
			RequireSSL:   db.RequireSSL,
		}
	}

	v.enum("log.level", s.Log.Level, "", "debug", "info", "warn", "error")
	v.enum("log.format", s.Log.Format, "", "text", "json")
	if s.Email.SMTPHost != "" && s.Email.Sender == "" {
		v.add("email.sender", "required when email.smtp_host is set")
	}

	if err := v.err(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
