package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Collision policies for publish.on_existing.
const (
	OnExistingUpdate = "update"
	OnExistingReject = "reject"
)

// Config represents the application configuration. It is loaded once and
// passed by value into constructors.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Remote  RemoteConfig      `yaml:"remote"`
	Publish PublishConfig     `yaml:"publish"`
	Storage StorageConfig     `yaml:"storage"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.SQLite, &c.Auth, &c.Remote, &c.Publish, &c.Storage,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
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

// VaultConfig holds the path to the local document directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the publish history database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the HTTP surface.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

var extensionRe = regexp.MustCompile(`^\.?[A-Za-z0-9]+$`)

// RemoteConfig points at the repository posts are published to.
type RemoteConfig struct {
	// BaseURL overrides the GitHub API root, e.g. for GitHub Enterprise.
	BaseURL    string        `yaml:"base_url"`
	Owner      string        `yaml:"owner"`
	Repo       string        `yaml:"repo"`
	Branch     string        `yaml:"branch"`
	Token      string        `yaml:"token"`
	ContentDir string        `yaml:"content_dir"`
	Extension  string        `yaml:"extension"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.ContentDir, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Match(extensionRe)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// PublishConfig holds publishing behaviour.
type PublishConfig struct {
	// DefaultTag tags untitled posts and prefixes their generated names.
	DefaultTag string `yaml:"default_tag"`
	OnExisting string `yaml:"on_existing"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultTag, validation.Required),
		validation.Field(&c.OnExisting, validation.Required, validation.In(OnExistingUpdate, OnExistingReject)),
	)
}

// StorageConfig holds the S3-compatible object storage used for
// attachments. Leaving Endpoint empty disables attachment uploads.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	PublicBaseURL   string `yaml:"public_base_url"`
	KeyPrefix       string `yaml:"key_prefix"`
}

// Enabled reports whether object storage is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Bucket, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.AccessKeyID, validation.When(c.Enabled(), validation.Required)),
		validation.Field(&c.SecretAccessKey, validation.When(c.Enabled(), validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./blogpush.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Remote: RemoteConfig{
			Owner:      "starford",
			Repo:       "blog",
			Branch:     "main",
			ContentDir: "data/blog",
			Extension:  "mdx",
			Timeout:    30 * time.Second,
		},
		Publish: PublishConfig{
			DefaultTag: "闲谈",
			OnExisting: OnExistingUpdate,
		},
		Storage: StorageConfig{
			UseSSL:    true,
			KeyPrefix: "blog",
		},
	}
}
