package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "augmenta_receiver.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. AUGMENTA_OSC_PORT.
const EnvPrefix = "AUGMENTA"

// ReceiverConfig holds the OSC ingress and tracking settings.
type ReceiverConfig struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	ReadBuffer   int           `json:"readBuffer" mapstructure:"readBuffer"`
	Version      string        `json:"version" mapstructure:"version"`
	FlipX        bool          `json:"flipX" mapstructure:"flipX"`
	FlipY        bool          `json:"flipY" mapstructure:"flipY"`
	PixelSize    float64       `json:"pixelSize" mapstructure:"pixelSize"`
	Scaling      float64       `json:"scaling" mapstructure:"scaling"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	Policy       string        `json:"policy" mapstructure:"policy"`
	Count        int           `json:"count" mapstructure:"count"`
	Mute         bool          `json:"mute" mapstructure:"mute"`
	FlushOnClose bool          `json:"flushOnClose" mapstructure:"flushOnClose"`
	TickRate     int           `json:"tickRate" mapstructure:"tickRate"`
	InboxSize    int           `json:"inboxSize" mapstructure:"inboxSize"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory sqlite backend.
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the session storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// URL returns the server URL built from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// APIConfig holds the upload server settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

var storageTypes = map[string]bool{
	"memory":    true,
	"sqlite":    true,
	"postgres":  true,
	"websocket": true,
	"none":      true,
}

// SetDefaults registers every default value. Load calls it; tests that skip
// the config file may call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./augmentalogs")

	viper.SetDefault("osc.host", "0.0.0.0")
	viper.SetDefault("osc.port", 12000)
	viper.SetDefault("osc.readBuffer", 0)

	viper.SetDefault("protocol.version", "v2")
	viper.SetDefault("protocol.flipX", false)
	viper.SetDefault("protocol.flipY", false)
	viper.SetDefault("protocol.pixelSize", protocol.DefaultPixelSize)

	viper.SetDefault("scene.scaling", 1.0)

	viper.SetDefault("objects.timeout", "1s")
	viper.SetDefault("objects.policy", "all")
	viper.SetDefault("objects.count", 1)

	viper.SetDefault("mute", false)
	viper.SetDefault("flushOnClose", true)
	viper.SetDefault("tickRate", 60)
	viper.SetDefault("inboxSize", 65536)

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "augmenta")
	viper.SetDefault("db.sslMode", "disable")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "augmenta")
	viper.SetDefault("influx.bucket", "augmenta")
	viper.SetDefault("influx.backupDir", "./augmentalogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "augmenta-receiver")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "5s")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment
// variables prefixed with AUGMENTA_ override file values.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// IsNotFound reports whether err from Load only means the file is absent.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":      "logLevel",
	"logs-dir":       "logsDir",
	"port":           "osc.port",
	"protocol":       "protocol.version",
	"flip-x":         "protocol.flipX",
	"flip-y":         "protocol.flipY",
	"policy":         "objects.policy",
	"count":          "objects.count",
	"timeout":        "objects.timeout",
	"mute":           "mute",
	"flush-on-close": "flushOnClose",
	"tick-rate":      "tickRate",
	"storage":        "storage.type",
}

// Flags returns the command-line flag set of the receiver. Flags only
// override the config file when given explicitly.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory containing "+FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./augmentalogs", "directory for log files")
	fs.IntP("port", "p", 12000, "OSC listening port")
	fs.String("protocol", "v2", "Augmenta protocol version (v1, v2)")
	fs.Bool("flip-x", false, "mirror incoming data on the X axis")
	fs.Bool("flip-y", false, "mirror incoming data on the Y axis")
	fs.String("policy", "all", "desired objects policy (all, oldest, newest)")
	fs.Int("count", 1, "object count for the oldest/newest policies")
	fs.Duration("timeout", time.Second, "inactivity timeout before an object is removed")
	fs.Bool("mute", false, "ignore all incoming messages")
	fs.Bool("flush-on-close", true, "emit left events for visible objects on shutdown")
	fs.Int("tick-rate", 60, "host loop ticks per second")
	fs.String("storage", "memory", "storage backend (memory, sqlite, postgres, websocket, none)")
	return fs
}

// BindFlags binds the flags created by Flags into viper.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetSeconds returns a duration given either as a number of seconds (1.5)
// or as a duration string with a unit ("1500ms"). A bare numeric string,
// as set through the environment, also counts as seconds. Unparsable
// values yield 0.
func GetSeconds(key string) time.Duration {
	switch v := viper.Get(key).(type) {
	case nil:
		return 0
	case time.Duration:
		return v
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return seconds(f)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0
		}
		return d
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0
		}
		return seconds(f)
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// GetReceiverConfig returns the OSC ingress and tracking settings.
func GetReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		Host:         viper.GetString("osc.host"),
		Port:         viper.GetInt("osc.port"),
		ReadBuffer:   viper.GetInt("osc.readBuffer"),
		Version:      viper.GetString("protocol.version"),
		FlipX:        viper.GetBool("protocol.flipX"),
		FlipY:        viper.GetBool("protocol.flipY"),
		PixelSize:    viper.GetFloat64("protocol.pixelSize"),
		Scaling:      viper.GetFloat64("scene.scaling"),
		Timeout:      GetSeconds("objects.timeout"),
		Policy:       viper.GetString("objects.policy"),
		Count:        viper.GetInt("objects.count"),
		Mute:         viper.GetBool("mute"),
		FlushOnClose: viper.GetBool("flushOnClose"),
		TickRate:     viper.GetInt("tickRate"),
		InboxSize:    viper.GetInt("inboxSize"),
	}
}

// Flips returns the configured axis flips.
func (c ReceiverConfig) Flips() protocol.Flips {
	return protocol.Flips{X: c.FlipX, Y: c.FlipY}
}

// SelectionPolicy parses the configured policy and count.
func (c ReceiverConfig) SelectionPolicy() (registry.Policy, error) {
	mode, err := registry.ParseMode(c.Policy)
	if err != nil {
		return registry.Policy{}, err
	}
	return registry.Policy{Mode: mode, Count: c.Count}, nil
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetDBConfig returns the Postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		SSLMode:  viper.GetString("db.sslMode"),
	}
}

// GetAPIConfig returns the upload server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// Validate rejects settings the receiver cannot start with.
func Validate() error {
	rc := GetReceiverConfig()
	if _, err := protocol.ParseVersion(rc.Version); err != nil {
		return fmt.Errorf("invalid protocol.version: %w", err)
	}
	if _, err := rc.SelectionPolicy(); err != nil {
		return fmt.Errorf("invalid objects.policy: %w", err)
	}
	if rc.Count < 0 {
		return fmt.Errorf("invalid objects.count %d: must not be negative", rc.Count)
	}
	if rc.Port < 0 || rc.Port > 65535 {
		return fmt.Errorf("invalid osc.port %d", rc.Port)
	}
	if rc.PixelSize <= 0 {
		return fmt.Errorf("invalid protocol.pixelSize %g: must be positive", rc.PixelSize)
	}
	if rc.TickRate <= 0 {
		return fmt.Errorf("invalid tickRate %d: must be positive", rc.TickRate)
	}
	if rc.Timeout <= 0 {
		return fmt.Errorf("invalid objects.timeout %s: must be positive", rc.Timeout)
	}
	if st := GetStorageConfig().Type; !storageTypes[st] {
		return fmt.Errorf("invalid storage.type %q", st)
	}
	return nil
}

// Watch calls fn whenever the config file changes on disk.
func Watch(fn func()) {
	viper.OnConfigChange(func(fsnotify.Event) { fn() })
	viper.WatchConfig()
}
