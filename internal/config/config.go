package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"skillswap/internal/joinwindow"
	"skillswap/internal/rooms"
	"skillswap/internal/router"
	"skillswap/internal/scheduler"
	dbconfig "skillswap/pkg/database"
	"skillswap/pkg/types"
)

// EnvPrefix namespaces every environment override
const EnvPrefix = "SKILLSWAP_"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database *DatabaseConfig `json:"database"`
	HTTP     *HTTPConfig     `json:"http"`
	Auth     *AuthConfig     `json:"auth"`
	Rooms    *RoomsConfig    `json:"rooms"`
	Schedule *ScheduleConfig `json:"schedule"`
	TURN     *TURNConfig     `json:"turn"`
	Log      *LogConfig      `json:"log"`
}

// DatabaseConfig selects the driver; SQLite needs a path, PostgreSQL a DSN
type DatabaseConfig struct {
	Driver         string `json:"driver"`
	Path           string `json:"path"`
	DSN            string `json:"dsn"`
	MaxConnections int    `json:"max_connections"`
}

// FUNCTIONAL DISCOVERY: HTTP configuration balances performance and reliability
type HTTPConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// RoomsConfig tunes the signaling relay
type RoomsConfig struct {
	Grace               time.Duration `json:"grace"`
	EnforceParticipants bool          `json:"enforce_participants"`
	RateLimit           int           `json:"rate_limit"`
}

// ScheduleConfig holds the class cadence and the join window
type ScheduleConfig struct {
	IntervalDays     int           `json:"interval_days"`
	ClassDurationMin int           `json:"class_duration_min"`
	JoinBefore       time.Duration `json:"join_before"`
	JoinAfter        time.Duration `json:"join_after"`
}

// TURNConfig controls the embedded relay and the ICE list handed to clients
type TURNConfig struct {
	Enabled    bool     `json:"enabled"`
	ListenAddr string   `json:"listen_addr"`
	PublicIP   string   `json:"public_ip"`
	Realm      string   `json:"realm"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	STUNURLs   []string `json:"stun_urls"`
}

type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// DefaultConfig returns settings that run a single instance against a local SQLite file
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Driver:         dbconfig.DriverSQLite,
			Path:           "./data/skillswap.db",
			MaxConnections: 10,
		},
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: &AuthConfig{},
		Rooms: &RoomsConfig{
			Grace:     rooms.DefaultGrace,
			RateLimit: router.DefaultRateLimit,
		},
		Schedule: &ScheduleConfig{
			IntervalDays:     scheduler.DefaultIntervalDays,
			ClassDurationMin: types.DefaultClassDurationMin,
			JoinBefore:       joinwindow.DefaultBefore,
			JoinAfter:        joinwindow.DefaultAfter,
		},
		TURN: &TURNConfig{
			ListenAddr: "0.0.0.0:3478",
			Realm:      "skillswap",
			STUNURLs:   []string{"stun:stun.l.google.com:19302"},
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
// Critical for preventing runtime failures in production deployment
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if err := c.DatabaseConfig().Validate(); err != nil {
		return err
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	// Port 0 binds an ephemeral port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.Auth == nil || c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Rooms == nil {
		return fmt.Errorf("rooms configuration is required")
	}
	if c.Rooms.Grace <= 0 {
		return fmt.Errorf("room grace period must be positive")
	}
	if c.Rooms.RateLimit <= 0 {
		return fmt.Errorf("relay rate limit must be positive")
	}

	if c.Schedule == nil {
		return fmt.Errorf("schedule configuration is required")
	}
	if c.Schedule.IntervalDays <= 0 {
		return fmt.Errorf("class interval must be at least one day")
	}
	if c.Schedule.ClassDurationMin <= 0 {
		return fmt.Errorf("class duration must be positive")
	}
	if c.Schedule.JoinBefore < 0 || c.Schedule.JoinAfter <= 0 {
		return fmt.Errorf("join window bounds are invalid")
	}

	if c.TURN != nil && c.TURN.Enabled {
		if c.TURN.PublicIP == "" {
			return fmt.Errorf("TURN public IP is required when the relay is enabled")
		}
		if c.TURN.Username == "" || c.TURN.Password == "" {
			return fmt.Errorf("TURN credentials are required when the relay is enabled")
		}
	}
	return nil
}

// DatabaseConfig converts to the connection settings of pkg/database
func (c *Config) DatabaseConfig() *dbconfig.Config {
	db := dbconfig.DefaultConfig()
	db.Driver = c.Database.Driver
	db.DatabasePath = c.Database.Path
	db.DSN = c.Database.DSN
	if c.Database.MaxConnections > 0 {
		db.MaxConnections = c.Database.MaxConnections
	}
	return db
}

// SchedulerConfig converts the cadence settings for the scheduler
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		IntervalDays:     c.Schedule.IntervalDays,
		ClassDurationMin: c.Schedule.ClassDurationMin,
	}
}

// JoinPolicy converts the window settings for the join-window policy
func (c *Config) JoinPolicy() joinwindow.Policy {
	return joinwindow.Policy{Before: c.Schedule.JoinBefore, After: c.Schedule.JoinAfter}
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// FUNCTIONAL DISCOVERY: Environment variable configuration enables deployment flexibility
// Supports containerized deployments and configuration management systems
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(config *Config) {
	setString(&config.Database.Driver, "DATABASE_DRIVER")
	setString(&config.Database.Path, "DATABASE_PATH")
	setString(&config.Database.DSN, "DATABASE_DSN")
	setInt(&config.Database.MaxConnections, "DATABASE_MAX_CONNECTIONS")

	setString(&config.HTTP.Host, "HTTP_HOST")
	setInt(&config.HTTP.Port, "HTTP_PORT")
	setDuration(&config.HTTP.ReadTimeout, "HTTP_READ_TIMEOUT")
	setDuration(&config.HTTP.WriteTimeout, "HTTP_WRITE_TIMEOUT")
	setDuration(&config.HTTP.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT")

	setString(&config.Auth.JWTSecret, "JWT_SECRET")

	setDuration(&config.Rooms.Grace, "ROOMS_GRACE")
	setBool(&config.Rooms.EnforceParticipants, "ROOMS_ENFORCE_PARTICIPANTS")
	setInt(&config.Rooms.RateLimit, "ROOMS_RATE_LIMIT")

	setInt(&config.Schedule.IntervalDays, "SCHEDULE_INTERVAL_DAYS")
	setInt(&config.Schedule.ClassDurationMin, "SCHEDULE_CLASS_DURATION_MIN")
	setDuration(&config.Schedule.JoinBefore, "SCHEDULE_JOIN_BEFORE")
	setDuration(&config.Schedule.JoinAfter, "SCHEDULE_JOIN_AFTER")

	setBool(&config.TURN.Enabled, "TURN_ENABLED")
	setString(&config.TURN.ListenAddr, "TURN_LISTEN_ADDR")
	setString(&config.TURN.PublicIP, "TURN_PUBLIC_IP")
	setString(&config.TURN.Realm, "TURN_REALM")
	setString(&config.TURN.Username, "TURN_USERNAME")
	setString(&config.TURN.Password, "TURN_PASSWORD")
	if urls := os.Getenv(EnvPrefix + "TURN_STUN_URLS"); urls != "" {
		config.TURN.STUNURLs = splitList(urls)
	}

	setString(&config.Log.Level, "LOG_LEVEL")
	setBool(&config.Log.Development, "LOG_DEVELOPMENT")
}

// FUNCTIONAL DISCOVERY: Malformed values are ignored and the previous layer wins
func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type ConfigFile struct {
	Database *DatabaseConfig  `json:"database"`
	HTTP     *HTTPConfigFile  `json:"http"`
	Auth     *AuthConfig      `json:"auth"`
	Rooms    *RoomsConfigFile `json:"rooms"`
	Schedule *ScheduleFile    `json:"schedule"`
	TURN     *TURNConfigFile  `json:"turn"`
	Log      *LogConfigFile   `json:"log"`
}

type HTTPConfigFile struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ReadTimeout     string `json:"read_timeout"`
	WriteTimeout    string `json:"write_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout"`
}

type RoomsConfigFile struct {
	Grace               string `json:"grace"`
	EnforceParticipants *bool  `json:"enforce_participants"`
	RateLimit           int    `json:"rate_limit"`
}

type ScheduleFile struct {
	IntervalDays     int    `json:"interval_days"`
	ClassDurationMin int    `json:"class_duration_min"`
	JoinBefore       string `json:"join_before"`
	JoinAfter        string `json:"join_after"`
}

type TURNConfigFile struct {
	Enabled    *bool    `json:"enabled"`
	ListenAddr string   `json:"listen_addr"`
	PublicIP   string   `json:"public_ip"`
	Realm      string   `json:"realm"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	STUNURLs   []string `json:"stun_urls"`
}

type LogConfigFile struct {
	Level       string `json:"level"`
	Development *bool  `json:"development"`
}

// LoadFromFile reads a JSON config file over the defaults and validates the result
func LoadFromFile(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, filepath); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

func applyFile(config *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	var bad []string
	duration := func(dst *time.Duration, name, v string) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			bad = append(bad, name)
			return
		}
		*dst = d
	}
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}

	if f := file.Database; f != nil {
		str(&config.Database.Driver, f.Driver)
		str(&config.Database.Path, f.Path)
		str(&config.Database.DSN, f.DSN)
		num(&config.Database.MaxConnections, f.MaxConnections)
	}
	if f := file.HTTP; f != nil {
		str(&config.HTTP.Host, f.Host)
		num(&config.HTTP.Port, f.Port)
		duration(&config.HTTP.ReadTimeout, "http.read_timeout", f.ReadTimeout)
		duration(&config.HTTP.WriteTimeout, "http.write_timeout", f.WriteTimeout)
		duration(&config.HTTP.ShutdownTimeout, "http.shutdown_timeout", f.ShutdownTimeout)
	}
	if f := file.Auth; f != nil {
		str(&config.Auth.JWTSecret, f.JWTSecret)
	}
	if f := file.Rooms; f != nil {
		duration(&config.Rooms.Grace, "rooms.grace", f.Grace)
		if f.EnforceParticipants != nil {
			config.Rooms.EnforceParticipants = *f.EnforceParticipants
		}
		num(&config.Rooms.RateLimit, f.RateLimit)
	}
	if f := file.Schedule; f != nil {
		num(&config.Schedule.IntervalDays, f.IntervalDays)
		num(&config.Schedule.ClassDurationMin, f.ClassDurationMin)
		duration(&config.Schedule.JoinBefore, "schedule.join_before", f.JoinBefore)
		duration(&config.Schedule.JoinAfter, "schedule.join_after", f.JoinAfter)
	}
	if f := file.TURN; f != nil {
		if f.Enabled != nil {
			config.TURN.Enabled = *f.Enabled
		}
		str(&config.TURN.ListenAddr, f.ListenAddr)
		str(&config.TURN.PublicIP, f.PublicIP)
		str(&config.TURN.Realm, f.Realm)
		str(&config.TURN.Username, f.Username)
		str(&config.TURN.Password, f.Password)
		if len(f.STUNURLs) > 0 {
			config.TURN.STUNURLs = f.STUNURLs
		}
	}
	if f := file.Log; f != nil {
		str(&config.Log.Level, f.Level)
		if f.Development != nil {
			config.Log.Development = *f.Development
		}
	}

	if len(bad) > 0 {
		return fmt.Errorf("invalid durations in %s: %s", filepath, strings.Join(bad, ", "))
	}
	return nil
}

// LoadConfigWithPrecedence layers defaults, then environment, then the file.
// FUNCTIONAL DISCOVERY: An unreadable file is reported rather than silently
// ignored; the caller decides whether to fall back.
func LoadConfigWithPrecedence(filepath string) (*Config, error) {
	config, err := Load(filepath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Load layers defaults, environment and the optional file without validating.
// Maintenance commands use it when only the database section matters.
func Load(filepath string) (*Config, error) {
	config := LoadFromEnv()
	if filepath != "" {
		if err := applyFile(config, filepath); err != nil {
			return nil, err
		}
	}
	return config, nil
}
