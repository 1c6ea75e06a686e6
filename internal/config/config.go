package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/loadtest/pkg/logger"
)

// DefaultEnvPrefix is the prefix shared by every environment override.
const DefaultEnvPrefix = "LT_"

// Config is the complete configuration of a loadtest process. A master only
// reads the master section and a worker the worker and target sections.
type Config struct {
	Master  MasterConfig  `yaml:"master"`
	Worker  WorkerConfig  `yaml:"worker"`
	Target  TargetConfig  `yaml:"target"`
	Logging LoggingConfig `yaml:"logging"`
}

// MasterConfig holds master node configuration.
type MasterConfig struct {
	Address           string        `yaml:"address" env:"MASTER_ADDRESS"`
	HealthInterval    time.Duration `yaml:"health_interval" env:"MASTER_HEALTH_INTERVAL"`
	AggregateInterval time.Duration `yaml:"aggregate_interval" env:"MASTER_AGGREGATE_INTERVAL"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"MASTER_REQUEST_TIMEOUT"`
	EnableCORS        bool          `yaml:"enable_cors" env:"MASTER_ENABLE_CORS"`
}

// WorkerConfig holds worker node configuration.
type WorkerConfig struct {
	Address string `yaml:"address" env:"WORKER_ADDRESS"`
	// AdvertiseURL is the base URL the master uses to reach this worker.
	AdvertiseURL     string        `yaml:"advertise_url" env:"WORKER_ADVERTISE_URL"`
	MasterURL        string        `yaml:"master_url" env:"WORKER_MASTER_URL"`
	FlushInterval    time.Duration `yaml:"flush_interval" env:"WORKER_FLUSH_INTERVAL"`
	RampInterval     time.Duration `yaml:"ramp_interval" env:"WORKER_RAMP_INTERVAL"`
	RampInitialDelay time.Duration `yaml:"ramp_initial_delay" env:"WORKER_RAMP_INITIAL_DELAY"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"WORKER_REQUEST_TIMEOUT"`
}

// TargetConfig tunes the client virtual users use against the target.
type TargetConfig struct {
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"TARGET_REQUEST_TIMEOUT"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host" env:"TARGET_MAX_CONNS_PER_HOST"`
	AssetSize       int           `yaml:"asset_size" env:"TARGET_ASSET_SIZE"` // bytes
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// LoggerConfig converts the section into the logger package configuration.
func (c LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Master: MasterConfig{
			Address:           ":8080",
			HealthInterval:    time.Second,
			AggregateInterval: time.Second,
			RequestTimeout:    5 * time.Second,
		},
		Worker: WorkerConfig{
			Address:          ":8081",
			AdvertiseURL:     "http://localhost:8081",
			MasterURL:        "http://localhost:8080",
			FlushInterval:    time.Second,
			RampInterval:     time.Second,
			RampInitialDelay: 500 * time.Millisecond,
			RequestTimeout:   5 * time.Second,
		},
		Target: TargetConfig{
			RequestTimeout:  30 * time.Second,
			MaxConnsPerHost: 1024,
			AssetSize:       130 * 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			FilePath:   "logs/loadtest.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		cmdArgs:   make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the prefix for environment variables.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithCmdArgs sets dot-path overrides taken from the command line.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load resolves the configuration from all sources.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnvToStruct walks nested sections and applies prefix+tag variables.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		name := l.envPrefix + envTag
		envValue, ok := os.LookupEnv(name)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", name, fieldType.Name, err)
		}
	}

	return nil
}

// setConfigValue sets a value addressed by its YAML dot path, e.g. "master.address".
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("无效的整数: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
