package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError is a problem with one configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns ValidationErrors
// when anything is wrong.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateMasterConfig(&cfg.Master)
	v.validateWorkerConfig(&cfg.Worker)
	v.validateTargetConfig(&cfg.Target)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateMasterConfig(cfg *MasterConfig) {
	v.requireAddress("master.address", cfg.Address)
	v.requirePositive("master.health_interval", cfg.HealthInterval)
	v.requirePositive("master.aggregate_interval", cfg.AggregateInterval)
	v.requirePositive("master.request_timeout", cfg.RequestTimeout)
}

func (v *Validator) validateWorkerConfig(cfg *WorkerConfig) {
	v.requireAddress("worker.address", cfg.Address)
	v.requireURL("worker.advertise_url", cfg.AdvertiseURL)
	v.requireURL("worker.master_url", cfg.MasterURL)
	v.requirePositive("worker.flush_interval", cfg.FlushInterval)
	v.requirePositive("worker.ramp_interval", cfg.RampInterval)
	v.requirePositive("worker.request_timeout", cfg.RequestTimeout)
	if cfg.RampInitialDelay < 0 {
		v.addError("worker.ramp_initial_delay", "must not be negative")
	}
}

func (v *Validator) validateTargetConfig(cfg *TargetConfig) {
	v.requirePositive("target.request_timeout", cfg.RequestTimeout)
	if cfg.MaxConnsPerHost < 1 {
		v.addError("target.max_conns_per_host", "must be at least 1")
	}
	if cfg.AssetSize < 0 {
		v.addError("target.asset_size", "must not be negative")
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if cfg.Format != "" && !validFormats[strings.ToLower(cfg.Format)] {
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: json, console", cfg.Format))
	}

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
	case "file", "both":
		if cfg.FilePath == "" {
			v.addError("logging.file_path", "file path is required when logging to a file")
		}
	default:
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, file, both", cfg.Output))
	}
}

func (v *Validator) requireAddress(field, addr string) {
	if addr == "" {
		v.addError(field, "address is required")
	} else if !isValidAddress(addr) {
		v.addError(field, "invalid address format, expected host:port or :port")
	}
}

func (v *Validator) requireURL(field, raw string) {
	if raw == "" {
		v.addError(field, "url is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addError(field, fmt.Sprintf("invalid url '%s', expected http(s)://host[:port]", raw))
	}
}

func (v *Validator) requirePositive(field string, d time.Duration) {
	if d <= 0 {
		v.addError(field, "must be positive")
	}
}

// isValidAddress accepts host:port and :port listen addresses.
func isValidAddress(addr string) bool {
	if addr == "" {
		return false
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	_, err = net.LookupPort("tcp", port)
	return err == nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// LoadAndValidate loads configuration through the loader and validates it.
func LoadAndValidate(l *Loader) (*Config, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
