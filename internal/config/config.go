package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// AppName names the per-user config directory.
const AppName = "phonegrabber"

// Config represents the phonegrabber configuration.
// Every value can come from a YAML file or from PHONEGRABBER_* environment variables.
type Config struct {
	// Environment selects the logger flavour (development or production)
	Environment string `env:"PHONEGRABBER_ENVIRONMENT" env-default:"development" yaml:"environment" validate:"oneof=development production"`

	Fetcher struct {
		// Mode is either "http" or "browser"
		Mode string `env:"PHONEGRABBER_FETCHER" env-default:"http" yaml:"mode" validate:"oneof=http browser"`
		// Concurrency caps the number of pages fetched at once, 0 means no limit
		Concurrency int `env:"PHONEGRABBER_CONCURRENCY" env-default:"16" yaml:"concurrency" validate:"gte=0"`
		// Timeout is the per-request timeout of the HTTP fetcher
		Timeout   time.Duration `env:"PHONEGRABBER_TIMEOUT" env-default:"30s" yaml:"timeout"`
		UserAgent string        `env:"PHONEGRABBER_USER_AGENT" env-default:"phonegrabber/1.0" yaml:"userAgent"`
		// MaxBodySize limits the number of response bytes read per page, 0 means no limit
		MaxBodySize int    `env:"PHONEGRABBER_MAX_BODY_SIZE" env-default:"0" yaml:"maxBodySize" validate:"gte=0"`
		Proxy       string `env:"PHONEGRABBER_PROXY" yaml:"proxy" validate:"omitempty,url"`
		// Headers are sent with every request
		Headers map[string]string `env:"PHONEGRABBER_HEADERS" env-separator:"," yaml:"headers"`
		// BrowserTimeout bounds all work on one browser tab
		BrowserTimeout time.Duration `env:"PHONEGRABBER_BROWSER_TIMEOUT" env-default:"2m" yaml:"browserTimeout"`
		// PageTimeout bounds the wait for a rendered page to settle
		PageTimeout time.Duration `env:"PHONEGRABBER_PAGE_TIMEOUT" env-default:"30s" yaml:"pageTimeout"`
		// BrowserBin overrides the browser binary used by the launcher
		BrowserBin string `env:"PHONEGRABBER_BROWSER_BIN" yaml:"browserBin"`
	} `yaml:"fetcher"`

	Extract struct {
		// Lenient drops the boundary character requirement in front of a phone
		Lenient bool `env:"PHONEGRABBER_LENIENT" env-default:"false" yaml:"lenient"`
		// TextOnly scans visible page text instead of raw markup
		TextOnly bool `env:"PHONEGRABBER_TEXT_ONLY" env-default:"false" yaml:"textOnly"`
		// Validate keeps only numbers valid for the Russian numbering plan
		Validate bool `env:"PHONEGRABBER_VALIDATE" env-default:"false" yaml:"validate"`
	} `yaml:"extract"`

	Output struct {
		// Format is either "text" or "json"
		Format  string `env:"PHONEGRABBER_FORMAT" env-default:"text" yaml:"format" validate:"oneof=text json"`
		NoColor bool   `env:"PHONEGRABBER_NO_COLOR" env-default:"false" yaml:"noColor"`
	} `yaml:"output"`
}

var validate = validator.New() //nolint: gochecknoglobals

// DefaultPath returns the per-user config file location,
// e.g. ~/.config/phonegrabber/config.yaml on Linux.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load returns a filled Config. With an empty configPath the file at
// DefaultPath is read when present, otherwise only the environment is.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		if _, err := os.Stat(DefaultPath()); err == nil {
			configPath = DefaultPath()
		}
	}

	var cfg Config
	var err error
	if configPath != "" {
		err = cleanenv.ReadConfig(configPath, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the config against its validate tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		messages = append(messages, fmt.Sprintf("%s: %v does not satisfy %s", fe.Namespace(), fe.Value(), rule))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}
