package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLATEGATE"

type Config struct {
	BaseURL        string
	HTTPTimeout    time.Duration
	HTTPRetryMax   int
	RequestRate    float64
	LoginPacing    time.Duration
	ResetPacing    time.Duration
	CaptchaWindow  time.Duration
	TaskRetryDelay time.Duration

	Workers   int
	MaxPlates int

	OCREngine      string
	OCRLanguage    string
	OCRConfigFile  string
	CaptchaDumpDir string

	LogLevel  string
	LogFormat string

	Host               string
	Port               string
	ServeTimeout       time.Duration
	MaxRequestBodySize int64

	AzureAccount    string
	AzureKey        string
	AzureContainer  string
	AzureServiceURL string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether result files should also be uploaded to blob storage
func (c *Config) AzureEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != "" && c.AzureContainer != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://www.viacar.ch/eindex/")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("http_retry_max", 3)
	v.SetDefault("request_rate", 0.0)
	v.SetDefault("login_pacing", 3*time.Second)
	v.SetDefault("reset_pacing", 3*time.Second)
	v.SetDefault("captcha_window", 60*time.Second)
	v.SetDefault("task_retry_delay", time.Second)
	v.SetDefault("workers", 8)
	v.SetDefault("max_plates", 0)
	v.SetDefault("ocr_engine", "tesseract")
	v.SetDefault("ocr_language", "eng")
	v.SetDefault("ocr_config_file", "")
	v.SetDefault("captcha_dump_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("serve_timeout", 30*time.Minute)
	v.SetDefault("max_request_body_size", 1<<20)
	v.SetDefault("azure_account", "")
	v.SetDefault("azure_key", "")
	v.SetDefault("azure_container", "")
	v.SetDefault("azure_service_url", "")
}

// Load reads PLATEGATE_* environment variables on top of the defaults
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration from v, which may already carry bound flags
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		BaseURL:            strings.TrimSpace(v.GetString("base_url")),
		HTTPTimeout:        v.GetDuration("http_timeout"),
		HTTPRetryMax:       v.GetInt("http_retry_max"),
		RequestRate:        v.GetFloat64("request_rate"),
		LoginPacing:        v.GetDuration("login_pacing"),
		ResetPacing:        v.GetDuration("reset_pacing"),
		CaptchaWindow:      v.GetDuration("captcha_window"),
		TaskRetryDelay:     v.GetDuration("task_retry_delay"),
		Workers:            v.GetInt("workers"),
		MaxPlates:          v.GetInt("max_plates"),
		OCREngine:          strings.TrimSpace(v.GetString("ocr_engine")),
		OCRLanguage:        v.GetString("ocr_language"),
		OCRConfigFile:      v.GetString("ocr_config_file"),
		CaptchaDumpDir:     v.GetString("captcha_dump_dir"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		Host:               v.GetString("host"),
		Port:               v.GetString("port"),
		ServeTimeout:       v.GetDuration("serve_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),
		AzureAccount:       v.GetString("azure_account"),
		AzureKey:           v.GetString("azure_key"),
		AzureContainer:     v.GetString("azure_container"),
		AzureServiceURL:    v.GetString("azure_service_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the portal client cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid BASE_URL: %q", c.BaseURL)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.HTTPTimeout <= 0 || c.CaptchaWindow <= 0 || c.TaskRetryDelay <= 0 || c.ServeTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got http=%s, captcha_window=%s, task_retry=%s, serve=%s)",
			c.HTTPTimeout, c.CaptchaWindow, c.TaskRetryDelay, c.ServeTimeout)
	}
	if c.LoginPacing < 0 || c.ResetPacing < 0 {
		return fmt.Errorf("pacing must be >= 0 (got login=%s, reset=%s)", c.LoginPacing, c.ResetPacing)
	}
	if c.HTTPRetryMax < 0 {
		return fmt.Errorf("HTTP_RETRY_MAX must be >= 0 (got %d)", c.HTTPRetryMax)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be > 0 (got %d)", c.Workers)
	}
	if c.MaxPlates < 0 {
		return fmt.Errorf("MAX_PLATES must be >= 0 (got %d)", c.MaxPlates)
	}
	if c.OCREngine == "" {
		return fmt.Errorf("OCR_ENGINE must not be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestRate < 0 {
		return fmt.Errorf("REQUEST_RATE must be >= 0 (got %g)", c.RequestRate)
	}
	return nil
}
