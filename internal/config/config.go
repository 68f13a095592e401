package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/shardprobe/internal/domain"
)

type Config struct {
	ServerRoot    string               // e.g. "http://files.docking.org"
	Variants      []domain.PathVariant // variants probed for existence
	FetchVariants []domain.PathVariant // variants every strategy fetches from
	TestKey       string               // reference key known to exist, e.g. "ACAAML"
	IndexKey      string               // key shaped like the production index
	IndexFile     string               // optional .uri or rsync index; its first entry overrides IndexKey
	Suffix        string
	WorkDir       string
	LogDir        string

	ConnectTimeout  time.Duration
	TransferTimeout time.Duration
	RetryAttempts   int           // re-attempts after the first try
	RetryBackoff    time.Duration // zero means retry immediately

	ProbeConnectTimeout time.Duration
	ProbeTimeout        time.Duration

	UserAgent       string
	SlackWebhookURL string // empty disables the summary notification
	DatabaseURL     string // empty disables the run archive
	KeepArtifacts   bool   // leave successful downloads in place for inspection
}

func FromEnv() Config {
	return Config{
		ServerRoot:    envString("SERVER_ROOT", "http://files.docking.org"),
		Variants:      domain.ParseVariants(envString("VARIANTS", "2D,3D")),
		FetchVariants: domain.ParseVariants(envString("FETCH_VARIANTS", "3D")),
		TestKey:       envString("TEST_KEY", "ACAAML"),
		IndexKey:      envString("INDEX_KEY", "AAAARN"),
		IndexFile:     os.Getenv("INDEX_FILE"),
		Suffix:        envString("SUFFIX", "pdbqt.gz"),
		WorkDir:       envString("WORK_DIR", "."),
		LogDir:        envString("LOG_DIR", "logs"),

		ConnectTimeout:  envMillis("CONNECT_TIMEOUT_MS", 30*time.Second),
		TransferTimeout: envMillis("TRANSFER_TIMEOUT_MS", 600*time.Second),
		RetryAttempts:   envInt("RETRY_ATTEMPTS", 2),
		RetryBackoff:    envMillis("RETRY_BACKOFF_MS", 0),

		ProbeConnectTimeout: envMillis("PROBE_CONNECT_TIMEOUT_MS", 10*time.Second),
		ProbeTimeout:        envMillis("PROBE_TIMEOUT_MS", 30*time.Second),

		UserAgent:       envString("USER_AGENT", "shardprobe/1.0"),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KeepArtifacts:   envBool("KEEP_ARTIFACTS", false),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// File is the YAML overlay. Unset fields keep the value from the environment.
type File struct {
	ServerRoot          string   `yaml:"server_root"`
	Variants            []string `yaml:"variants"`
	FetchVariants       []string `yaml:"fetch_variants"`
	TestKey             string   `yaml:"test_key"`
	IndexKey            string   `yaml:"index_key"`
	IndexFile           string   `yaml:"index_file"`
	Suffix              string   `yaml:"suffix"`
	WorkDir             string   `yaml:"work_dir"`
	LogDir              string   `yaml:"log_dir"`
	ConnectTimeoutMS    *int     `yaml:"connect_timeout_ms"`
	TransferTimeoutMS   *int     `yaml:"transfer_timeout_ms"`
	RetryAttempts       *int     `yaml:"retry_attempts"`
	RetryBackoffMS      *int     `yaml:"retry_backoff_ms"`
	ProbeConnectTimeout *int     `yaml:"probe_connect_timeout_ms"`
	ProbeTimeoutMS      *int     `yaml:"probe_timeout_ms"`
	UserAgent           string   `yaml:"user_agent"`
	SlackWebhookURL     string   `yaml:"slack_webhook_url"`
	DatabaseURL         string   `yaml:"database_url"`
	KeepArtifacts       *bool    `yaml:"keep_artifacts"`
}

// LoadFile reads a YAML file and layers it over c.
func LoadFile(c Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return c, fmt.Errorf("parse config yaml: %w", err)
	}
	return f.Apply(c), nil
}

func (f File) Apply(c Config) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	ms := func(dst *time.Duration, v *int) {
		if v != nil && *v >= 0 {
			*dst = time.Duration(*v) * time.Millisecond
		}
	}
	set(&c.ServerRoot, f.ServerRoot)
	set(&c.TestKey, f.TestKey)
	set(&c.IndexKey, f.IndexKey)
	set(&c.IndexFile, f.IndexFile)
	set(&c.Suffix, f.Suffix)
	set(&c.WorkDir, f.WorkDir)
	set(&c.LogDir, f.LogDir)
	set(&c.UserAgent, f.UserAgent)
	set(&c.SlackWebhookURL, f.SlackWebhookURL)
	set(&c.DatabaseURL, f.DatabaseURL)
	if len(f.Variants) > 0 {
		c.Variants = domain.ParseVariants(strings.Join(f.Variants, ","))
	}
	if len(f.FetchVariants) > 0 {
		c.FetchVariants = domain.ParseVariants(strings.Join(f.FetchVariants, ","))
	}
	ms(&c.ConnectTimeout, f.ConnectTimeoutMS)
	ms(&c.TransferTimeout, f.TransferTimeoutMS)
	ms(&c.RetryBackoff, f.RetryBackoffMS)
	ms(&c.ProbeConnectTimeout, f.ProbeConnectTimeout)
	ms(&c.ProbeTimeout, f.ProbeTimeoutMS)
	if f.RetryAttempts != nil && *f.RetryAttempts >= 0 {
		c.RetryAttempts = *f.RetryAttempts
	}
	if f.KeepArtifacts != nil {
		c.KeepArtifacts = *f.KeepArtifacts
	}
	return c
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	u, perr := url.Parse(c.ServerRoot)
	switch {
	case strings.TrimSpace(c.ServerRoot) == "":
		err = multierr.Append(err, errors.New("server root is empty"))
	case perr != nil:
		err = multierr.Append(err, fmt.Errorf("server root: %w", perr))
	case u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https":
		err = multierr.Append(err, fmt.Errorf("server root scheme %q: want http or https", u.Scheme))
	}
	if len(c.Variants) == 0 {
		err = multierr.Append(err, errors.New("no variants configured"))
	}
	if len(c.FetchVariants) == 0 {
		err = multierr.Append(err, errors.New("no fetch variants configured"))
	}
	if _, kerr := domain.ParseResourceKey(c.TestKey); kerr != nil {
		err = multierr.Append(err, fmt.Errorf("test key: %w", kerr))
	}
	if c.IndexFile == "" {
		if _, kerr := domain.ParseResourceKey(c.IndexKey); kerr != nil {
			err = multierr.Append(err, fmt.Errorf("index key: %w", kerr))
		}
	}
	if strings.Trim(c.Suffix, ".") == "" {
		err = multierr.Append(err, errors.New("suffix is empty"))
	}
	if c.WorkDir == "" || c.LogDir == "" {
		err = multierr.Append(err, errors.New("work dir and log dir must be set"))
	}
	if c.ConnectTimeout <= 0 || c.TransferTimeout <= 0 || c.ProbeConnectTimeout <= 0 || c.ProbeTimeout <= 0 {
		err = multierr.Append(err, errors.New("timeouts must be positive"))
	}
	return err
}
