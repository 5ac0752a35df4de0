package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/courseshera/coursesearch/internal/output"
	"github.com/courseshera/coursesearch/pkg/models"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	APIURL             string        `yaml:"apiURL" envconfig:"API_URL"`
	APIToken           string        `yaml:"apiToken" envconfig:"API_TOKEN"`
	CourseID           string        `yaml:"courseID" envconfig:"COURSE_ID"`
	Category           string        `yaml:"category"`
	TopK               int           `yaml:"topK" envconfig:"TOP_K"`
	Language           string        `yaml:"language"`
	Symbol             string        `yaml:"symbol"`
	Output             string        `yaml:"output"`
	Color              bool          `yaml:"color"`
	LogLevel           string        `yaml:"logLevel" split_words:"true"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify" envconfig:"SKIP_TLS_VERIFY"`

	Retry RetrySpecification `yaml:"retry"`

	flags *pflag.FlagSet `ignored:"true"`
}

type RetrySpecification struct {
	MaxAttempts    int  `yaml:"maxAttempts" split_words:"true"`
	BreakerEnabled bool `yaml:"breakerEnabled" split_words:"true"`
}

const envPrefix = "COURSESEARCH"

func (s *Specification) Usage() {
	if s.flags == nil {
		return
	}
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover. args are the command line
// arguments without the program name; positional arguments are left in
// fs.Args(). A ./.env file is merged into the environment first; variables
// that are already set win.
func Load(configPath string, fs *pflag.FlagSet, args []string) (Specification, error) {
	var cfg Specification

	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return Specification{}, fmt.Errorf("load .env: %w", err)
		}
	}

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		path = configFromArgs(args)
	}
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/coursesearch.yaml",
				"./coursesearch.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(args); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at request time.
func (s *Specification) Validate() error {
	u, err := url.Parse(strings.TrimSpace(s.APIURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s_API_URL must be an absolute http(s) URL, got %q", envPrefix, s.APIURL)
	}
	if s.Category != "" && !models.Category(s.Category).Valid() {
		return fmt.Errorf("category must be %q or %q, got %q", models.CategoryTheory, models.CategoryLab, s.Category)
	}
	if s.CourseID != "" {
		if _, err := uuid.Parse(s.CourseID); err != nil {
			return fmt.Errorf("course id %q is not a UUID: %w", s.CourseID, err)
		}
	}
	if s.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", s.TopK)
	}
	if _, err := output.ParseFormat(s.Output); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", s.Retry.MaxAttempts)
	}
	return nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// configFromArgs finds --config before flags are parsed so discovery can use it.
func configFromArgs(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		if a == "--config" {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				return args[i+1]
			}
		} else if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	fs.String("api-url", c.APIURL, "Course API base URL")
	fs.String("api-token", c.APIToken, "Bearer token sent to the course API")
	fs.Bool("insecure-skip-verify", c.InsecureSkipVerify, "Skip TLS certificate verification")
	fs.Duration("timeout", c.Timeout, "Per-request timeout")

	fs.String("course-id", c.CourseID, "Restrict results to a course (UUID)")
	fs.String("category", c.Category, "Restrict results to a category (theory|lab)")
	fs.IntP("top-k", "k", c.TopK, "Number of hits to request")
	fs.String("language", c.Language, "Restrict code hits to a language")
	fs.String("symbol", c.Symbol, "Restrict code hits to a symbol name")

	fs.StringP("output", "o", c.Output, "Output format (text|json|html)")
	fs.Bool("color", c.Color, "Colorize text output")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")

	fs.Int("retry-max-attempts", c.Retry.MaxAttempts, "Attempts per API call, including the first")
	fs.Bool("retry-breaker", c.Retry.BreakerEnabled, "Enable the per-operation circuit breaker")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("api-url", &c.APIURL)
	setStr("api-token", &c.APIToken)
	setBool("insecure-skip-verify", &c.InsecureSkipVerify)
	setDuration("timeout", &c.Timeout)

	setStr("course-id", &c.CourseID)
	setStr("category", &c.Category)
	setInt("top-k", &c.TopK)
	setStr("language", &c.Language)
	setStr("symbol", &c.Symbol)

	setStr("output", &c.Output)
	setBool("color", &c.Color)
	setStr("log-level", &c.LogLevel)

	setInt("retry-max-attempts", &c.Retry.MaxAttempts)
	setBool("retry-breaker", &c.Retry.BreakerEnabled)
}

func setDefaults(c *Specification) {
	c.APIURL = "http://localhost:8000"
	c.TopK = 12
	c.Output = string(output.FormatText)
	c.Color = true
	c.LogLevel = "info"
	c.Timeout = 30 * time.Second
	c.Retry.MaxAttempts = 3
	c.Retry.BreakerEnabled = true
}
