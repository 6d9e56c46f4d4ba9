package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// File is the on-disk service configuration: where to publish, where to
// keep setup entries, and which stations or buoys to follow.
type File struct {
	MQTT      MQTTConfig       `mapstructure:"mqtt"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	Store     StoreConfig      `mapstructure:"store"`
	Instances []InstanceConfig `mapstructure:"instances"`
}

type MQTTConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client_id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	TopicPrefix     string        `mapstructure:"topic_prefix"`
	DiscoveryPrefix string        `mapstructure:"discovery_prefix"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type StoreConfig struct {
	Type  string `mapstructure:"type"`
	Table string `mapstructure:"table"`
}

const (
	StoreMemory = "memory"
	StoreDynamo = "dynamodb"
)

// InstanceConfig mirrors the options a user picks in the setup flow.
type InstanceConfig struct {
	Identifier     string   `mapstructure:"identifier"`
	Name           string   `mapstructure:"name"`
	TimezoneMode   string   `mapstructure:"timezone_mode"`
	UnitSystem     string   `mapstructure:"unit_system"`
	UpdateInterval int      `mapstructure:"update_interval"`
	Sensors        []string `mapstructure:"sensors"`
}

// Options converts the instance block into validated setup options. An empty
// sensor list is allowed here; the caller fills it from the capability set.
func (i InstanceConfig) Options() (models.Options, error) {
	tz, err := models.ParseTimezoneMode(i.TimezoneMode)
	if err != nil {
		return models.Options{}, &models.OptionsError{Field: "timezone_mode", Message: err.Error()}
	}
	units, err := models.ParseUnitSystem(i.UnitSystem)
	if err != nil {
		return models.Options{}, &models.OptionsError{Field: "unit_system", Message: err.Error()}
	}

	products := make([]models.ProductKind, 0, len(i.Sensors))
	for _, s := range i.Sensors {
		p, err := models.ParseProductKind(s)
		if err != nil {
			return models.Options{}, &models.OptionsError{Field: "sensors", Message: err.Error()}
		}
		products = append(products, p)
	}

	interval := i.UpdateInterval
	if interval == 0 {
		interval = models.DefaultUpdateInterval
	}

	name := i.Name
	if name == "" {
		name = strings.ToUpper(strings.TrimSpace(i.Identifier))
	}

	return models.Options{
		Name:                  name,
		TimezoneMode:          tz,
		UnitSystem:            units,
		UpdateIntervalSeconds: interval,
		EnabledSensors:        models.SensorSet(products...),
	}, nil
}

func setFileDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "tidesensors")
	v.SetDefault("mqtt.topic_prefix", "tidesensors")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.connect_timeout", "10s")
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.type", StoreMemory)
	v.SetDefault("store.table", DefaultEntryTable)
}

// LoadFile reads the service configuration. With an empty path the usual
// locations are searched and a missing file yields the defaults. Keys can be
// overridden with TIDESENSORS_ prefixed environment variables.
func LoadFile(path string) (*File, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tidesensors")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tidesensors")
	}

	v.SetEnvPrefix("TIDESENSORS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setFileDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	switch f.Store.Type {
	case StoreMemory, StoreDynamo:
	default:
		return fmt.Errorf("unknown store type %q", f.Store.Type)
	}

	seen := make(map[string]struct{}, len(f.Instances))
	for idx, inst := range f.Instances {
		id := strings.ToUpper(strings.TrimSpace(inst.Identifier))
		if id == "" {
			return fmt.Errorf("instance %d: identifier is required", idx)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("instance %d: duplicate identifier %s", idx, id)
		}
		seen[id] = struct{}{}
		if _, err := inst.Options(); err != nil {
			return fmt.Errorf("instance %s: %w", id, err)
		}
	}
	return nil
}
