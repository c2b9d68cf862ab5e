package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Ticket  Ticket  `yaml:"ticket"`
	Scanner Scanner `yaml:"scanner"`
	Auth    Auth    `yaml:"auth"`
}

type Server struct {
	FQDN          string `yaml:"fqdn"`
	ListenAddr    string `yaml:"listenAddr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	Registry      string `yaml:"registry"` // memory, redis, memcached, postgres
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	EthereumRPC   string `yaml:"ethereumRPC"`
	AnchorChain   string `yaml:"anchorChain"`
}

type Ticket struct {
	HashPrefixLength int    `yaml:"hashPrefixLength"`
	EarlyWindow      string `yaml:"earlyWindow"`
	LateWindow       string `yaml:"lateWindow"`
	QRSize           int    `yaml:"qrSize"`
	// SecretSalt is used for every event unless MasterKey is set.
	SecretSalt string `yaml:"secretSalt"`
	MasterKey  string `yaml:"masterKey"`
}

type Scanner struct {
	ServerURL     string `yaml:"serverURL"`
	DeviceToken   string `yaml:"deviceToken"`
	DeviceID      string `yaml:"deviceID"`
	EventID       string `yaml:"eventID"`
	EventStart    string `yaml:"eventStart"` // RFC3339
	EventEnd      string `yaml:"eventEnd"`
	QueueDsn      string `yaml:"queueDsn"`
	FlushInterval string `yaml:"flushInterval"`
	HealthTTL     string `yaml:"healthTTL"`
	BatchSize     int    `yaml:"batchSize"`
	MaxRetries    uint64 `yaml:"maxRetries"`
}

type Auth struct {
	DeviceSecret string `yaml:"deviceSecret"`
	TokenTTL     string `yaml:"tokenTTL"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"TICKETGATE_SECRET_SALT":   &c.Ticket.SecretSalt,
		"TICKETGATE_MASTER_KEY":    &c.Ticket.MasterKey,
		"TICKETGATE_DEVICE_SECRET": &c.Auth.DeviceSecret,
		"TICKETGATE_DEVICE_TOKEN":  &c.Scanner.DeviceToken,
		"TICKETGATE_POSTGRES_DSN":  &c.Server.PostgresDsn,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8000"
	}
	if c.Server.Registry == "" {
		c.Server.Registry = "redis"
	}
	if c.Ticket.HashPrefixLength == 0 {
		c.Ticket.HashPrefixLength = ticketgate.DefaultHashPrefixLength
	}
	if c.Scanner.BatchSize == 0 {
		c.Scanner.BatchSize = 50
	}
	if c.Scanner.MaxRetries == 0 {
		c.Scanner.MaxRetries = 5
	}
}

func (c Config) Validate() error {
	if err := ticketgate.ValidatePrefixLength(c.Ticket.HashPrefixLength); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"ticket.earlyWindow":    c.Ticket.EarlyWindow,
		"ticket.lateWindow":     c.Ticket.LateWindow,
		"scanner.flushInterval": c.Scanner.FlushInterval,
		"scanner.healthTTL":     c.Scanner.HealthTTL,
		"auth.tokenTTL":         c.Auth.TokenTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Server.Registry {
	case "memory", "redis", "memcached", "postgres":
	default:
		return fmt.Errorf("server.registry: unknown registry %q", c.Server.Registry)
	}
	return nil
}

// Duration parses a validated duration string, falling back to def when unset.
func Duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || v == "" {
		return def
	}
	return d
}

func (c Config) Domain() domain.Config {
	return domain.Config{
		FQDN:             c.Server.FQDN,
		HashPrefixLength: c.Ticket.HashPrefixLength,
		EarlyWindow:      Duration(c.Ticket.EarlyWindow, ticketgate.EarlyWindow),
		LateWindow:       Duration(c.Ticket.LateWindow, ticketgate.LateWindow),
	}
}

// EventWindow parses the scanner's configured event bounds.
func (s Scanner) EventWindow() (domain.EventWindow, error) {
	var w domain.EventWindow
	if s.EventStart != "" {
		t, err := time.Parse(time.RFC3339, s.EventStart)
		if err != nil {
			return w, fmt.Errorf("scanner.eventStart: %w", err)
		}
		w.Start = &t
	}
	if s.EventEnd != "" {
		t, err := time.Parse(time.RFC3339, s.EventEnd)
		if err != nil {
			return w, fmt.Errorf("scanner.eventEnd: %w", err)
		}
		w.End = &t
	}
	return w, nil
}
