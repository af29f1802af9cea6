// Package config provides configuration loading and validation for the CLI.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/remi/quizshare/internal/schemas"
)

//go:embed config.schema.json
var configSchema string

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via
// CLI flags.
type Config struct {
	// Roster
	Roster    string            `json:"roster,omitempty"`    // Path to the student roster file
	Delimiter string            `json:"delimiter,omitempty"` // Roster field separator, default ":"
	Comment   string            `json:"comment,omitempty"`   // Roster comment prefix, default "#"
	Columns   map[string]string `json:"columns,omitempty"`   // Column role -> header name overrides

	// Remote layout
	QuizLabel    string `json:"quiz_label,omitempty"`    // Prefix of uploaded file names
	FolderRoot   string `json:"folder_root,omitempty"`   // Remote root folder
	FolderSuffix string `json:"folder_suffix,omitempty"` // Appended to each student folder name

	// Server
	Address      string `json:"address,omitempty" validate:"omitempty,url"` // ownCloud/Nextcloud address
	Username     string `json:"username,omitempty"`
	SSO          bool   `json:"sso,omitempty"`           // Form-based single sign-on login
	BrowserLogin bool   `json:"browser_login,omitempty"` // Headless-browser SSO login (requires Chrome)

	// Shortener
	ShortenerEndpoint  string `json:"shortener_endpoint,omitempty" validate:"omitempty,url"`
	ShortenerSignature string `json:"shortener_signature,omitempty"`

	// Behavior
	Replace     bool   `json:"replace,omitempty"` // Overwrite the roster instead of writing a derived file
	Verbose     bool   `json:"verbose,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for run history
}

// LoadConfig loads configuration from a JSON file, checking it against the
// embedded JSON schema first. Returns an error if the file cannot be read,
// fails schema validation, or cannot be parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := schemas.ValidateJSONString(configSchema, string(data)); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required fields
// are not checked here since they are handled after merging with CLI flags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if len(c.Delimiter) > 1 {
		return fmt.Errorf("config error: 'delimiter' must be a single character")
	}

	if c.Roster != "" {
		if _, err := os.Stat(c.Roster); os.IsNotExist(err) {
			return fmt.Errorf("config error: roster file not found: %s", c.Roster)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty string fields filled from
// defaults. This is used to apply built-in values under config file and flag
// overrides.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Roster == "" {
		result.Roster = defaults.Roster
	}
	if result.Delimiter == "" {
		result.Delimiter = defaults.Delimiter
	}
	if result.Comment == "" {
		result.Comment = defaults.Comment
	}
	if result.QuizLabel == "" {
		result.QuizLabel = defaults.QuizLabel
	}
	if result.FolderRoot == "" {
		result.FolderRoot = defaults.FolderRoot
	}
	if result.FolderSuffix == "" {
		result.FolderSuffix = defaults.FolderSuffix
	}
	if result.Address == "" {
		result.Address = defaults.Address
	}
	if result.Username == "" {
		result.Username = defaults.Username
	}
	if result.ShortenerEndpoint == "" {
		result.ShortenerEndpoint = defaults.ShortenerEndpoint
	}
	if result.ShortenerSignature == "" {
		result.ShortenerSignature = defaults.ShortenerSignature
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
