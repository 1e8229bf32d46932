// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the daemon's YAML configuration file.
package config

import (
	"os"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"

	"github.com/juju/eventfanout/internal/wire"
)

const (
	CapacityKey        = "capacity"
	LogsPathKey        = "logs-path"
	LoggingConfigKey   = "logging-config"
	LogMaxSizeKey      = "log-max-size-mb"
	LogMaxBackupsKey   = "log-max-backups"
	DatabasePathKey    = "database-path"
	PollIntervalKey    = "poll-interval"
	ReadBatchSizeKey   = "read-batch-size"
	ProtocolVersionKey = "protocol-version"
	MetricsAddressKey  = "metrics-address"
	QueueSizeKey       = "queue-size"
	RetryAttemptsKey   = "retry-attempts"
	RetryDelayKey      = "retry-delay"
)

const (
	DefaultCapacity        = 10
	DefaultLoggingConfig   = "<root>=INFO"
	DefaultLogMaxSizeMB    = 300
	DefaultLogMaxBackups   = 2
	DefaultDatabasePath    = "eventfanout.db"
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultReadBatchSize   = 100
	DefaultProtocolVersion = int(wire.V2)
	DefaultQueueSize       = 1000
	DefaultRetryAttempts   = 5
	DefaultRetryDelay      = 100 * time.Millisecond
)

var configFields = schema.Fields{
	CapacityKey:        schema.ForceInt(),
	LogsPathKey:        schema.String(),
	LoggingConfigKey:   schema.String(),
	LogMaxSizeKey:      schema.ForceInt(),
	LogMaxBackupsKey:   schema.ForceInt(),
	DatabasePathKey:    schema.String(),
	PollIntervalKey:    schema.TimeDurationString(),
	ReadBatchSizeKey:   schema.ForceInt(),
	ProtocolVersionKey: schema.ForceInt(),
	MetricsAddressKey:  schema.String(),
	QueueSizeKey:       schema.ForceInt(),
	RetryAttemptsKey:   schema.ForceInt(),
	RetryDelayKey:      schema.TimeDurationString(),
}

var configDefaults = schema.Defaults{
	CapacityKey:        DefaultCapacity,
	LogsPathKey:        "",
	LoggingConfigKey:   DefaultLoggingConfig,
	LogMaxSizeKey:      DefaultLogMaxSizeMB,
	LogMaxBackupsKey:   DefaultLogMaxBackups,
	DatabasePathKey:    DefaultDatabasePath,
	PollIntervalKey:    DefaultPollInterval.String(),
	ReadBatchSizeKey:   DefaultReadBatchSize,
	ProtocolVersionKey: DefaultProtocolVersion,
	MetricsAddressKey:  "",
	QueueSizeKey:       DefaultQueueSize,
	RetryAttemptsKey:   DefaultRetryAttempts,
	RetryDelayKey:      DefaultRetryDelay.String(),
}

var configChecker = schema.FieldMap(configFields, configDefaults)

// Config holds the daemon's settings.
type Config struct {
	// Capacity is the number of events the distribution point retains.
	Capacity int

	// LogsPath, when set, is the directory the daemon writes its log file
	// to, in addition to stderr.
	LogsPath      string
	LoggingConfig string
	LogMaxSizeMB  int
	LogMaxBackups int

	// DatabasePath is the SQLite transaction log.
	DatabasePath  string
	PollInterval  time.Duration
	ReadBatchSize int

	ProtocolVersion wire.Version

	// MetricsAddress is where /metrics and /report are served. Empty
	// disables the introspection server.
	MetricsAddress string

	// QueueSize bounds the undelivered events of each subscriber.
	QueueSize int

	RetryAttempts int
	RetryDelay    time.Duration
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg, err := FromAttrs(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Read reads and parses the YAML file at path.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	return cfg, errors.Annotatef(err, "config %q", path)
}

// Parse parses a YAML document of config attributes.
func Parse(data []byte) (Config, error) {
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return Config{}, errors.NotValidf("yaml: %v", err)
	}
	return FromAttrs(attrs)
}

// FromAttrs builds a Config from attributes, filling in defaults for
// anything missing.
func FromAttrs(attrs map[string]interface{}) (Config, error) {
	known := set.NewStrings()
	for key := range configFields {
		known.Add(key)
	}
	unknown := set.NewStrings()
	for key := range attrs {
		if !known.Contains(key) {
			unknown.Add(key)
		}
	}
	if !unknown.IsEmpty() {
		return Config{}, errors.NotValidf("unknown attributes %v", unknown.SortedValues())
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	coerced, err := configChecker.Coerce(attrs, nil)
	if err != nil {
		return Config{}, errors.NewNotValid(err, "coercing config")
	}
	v := coerced.(map[string]interface{})

	version, err := wire.ParseVersion(v[ProtocolVersionKey].(int))
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	pollInterval, err := time.ParseDuration(v[PollIntervalKey].(string))
	if err != nil {
		return Config{}, errors.NotValidf("%s %q", PollIntervalKey, v[PollIntervalKey])
	}
	retryDelay, err := time.ParseDuration(v[RetryDelayKey].(string))
	if err != nil {
		return Config{}, errors.NotValidf("%s %q", RetryDelayKey, v[RetryDelayKey])
	}
	cfg := Config{
		Capacity:        v[CapacityKey].(int),
		LogsPath:        v[LogsPathKey].(string),
		LoggingConfig:   v[LoggingConfigKey].(string),
		LogMaxSizeMB:    v[LogMaxSizeKey].(int),
		LogMaxBackups:   v[LogMaxBackupsKey].(int),
		DatabasePath:    v[DatabasePathKey].(string),
		PollInterval:    pollInterval,
		ReadBatchSize:   v[ReadBatchSizeKey].(int),
		ProtocolVersion: version,
		MetricsAddress:  v[MetricsAddressKey].(string),
		QueueSize:       v[QueueSizeKey].(int),
		RetryAttempts:   v[RetryAttemptsKey].(int),
		RetryDelay:      retryDelay,
	}
	return cfg, errors.Trace(cfg.Validate())
}

// Validate returns an error if the settings cannot run the daemon.
func (c Config) Validate() error {
	positive := []struct {
		key   string
		value int
	}{
		{CapacityKey, c.Capacity},
		{ReadBatchSizeKey, c.ReadBatchSize},
		{QueueSizeKey, c.QueueSize},
		{RetryAttemptsKey, c.RetryAttempts},
		{LogMaxSizeKey, c.LogMaxSizeMB},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return errors.NotValidf("%s %d", p.key, p.value)
		}
	}
	if c.LogMaxBackups < 0 {
		return errors.NotValidf("%s %d", LogMaxBackupsKey, c.LogMaxBackups)
	}
	if c.PollInterval <= 0 {
		return errors.NotValidf("%s %v", PollIntervalKey, c.PollInterval)
	}
	if c.RetryDelay <= 0 {
		return errors.NotValidf("%s %v", RetryDelayKey, c.RetryDelay)
	}
	if c.DatabasePath == "" {
		return errors.NotValidf("empty %s", DatabasePathKey)
	}
	if _, err := wire.ParseVersion(int(c.ProtocolVersion)); err != nil {
		return errors.Trace(err)
	}
	return nil
}
