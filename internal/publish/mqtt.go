package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

const (
	DefaultTopicPrefix     = "tidesensors"
	DefaultDiscoveryPrefix = "homeassistant"

	availableOnline  = "online"
	availableOffline = "offline"
)

type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	ConnectTimeout  time.Duration
}

// Publisher delivers readings to an MQTT broker using Home Assistant
// discovery. Each reading gets a retained discovery config, a retained JSON
// state and an availability topic.
type Publisher struct {
	client          mqtt.Client
	topicPrefix     string
	discoveryPrefix string
	timeout         time.Duration

	mu        sync.Mutex
	announced map[string]string
}

// NewPublisher connects to the broker described by cfg.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)
	}

	return NewPublisherWithClient(client, cfg), nil
}

// NewPublisherWithClient wraps an already configured client.
func NewPublisherWithClient(client mqtt.Client, cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Publisher{
		client:          client,
		topicPrefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		discoveryPrefix: strings.TrimSuffix(cfg.DiscoveryPrefix, "/"),
		timeout:         cfg.ConnectTimeout,
		announced:       make(map[string]string),
	}
}

func (p *Publisher) Name() string {
	return "mqtt"
}

// Publish sends every reading of entry. Unavailable readings only flip
// their availability topic to offline. All readings are attempted; the
// returned error joins the failures.
func (p *Publisher) Publish(ctx context.Context, entry *models.ConfigEntry, readings []models.Reading) error {
	node := NodeID(entry)
	var errs []error

	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !r.Available {
			if err := p.send(p.availabilityTopic(node, r.Key), availableOffline); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if err := p.announce(entry, node, r); err != nil {
			errs = append(errs, err)
			continue
		}

		payload, err := json.Marshal(newStatePayload(r))
		if err != nil {
			errs = append(errs, fmt.Errorf("marshaling state for %s: %w", r.Key, err))
			continue
		}
		if err := p.send(p.stateTopic(node, r.Key), payload); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.send(p.availabilityTopic(node, r.Key), availableOnline); err != nil {
			errs = append(errs, err)
		}
	}

	log.Debug().
		Str("node", node).
		Int("readings", len(readings)).
		Int("errors", len(errs)).
		Msg("Published readings to MQTT")

	return errors.Join(errs...)
}

// Unpublish clears the retained discovery configs of entry so Home
// Assistant removes its sensors.
func (p *Publisher) Unpublish(entry *models.ConfigEntry) error {
	node := NodeID(entry)
	var errs []error
	for _, product := range entry.Options.SensorList() {
		if err := p.send(p.discoveryTopic(node, product), ""); err != nil {
			errs = append(errs, err)
		}
		p.mu.Lock()
		delete(p.announced, node+"/"+string(product))
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	p.client.Disconnect(1000)
}

// announce publishes the discovery config the first time a reading is seen
// and again whenever its unit changes.
func (p *Publisher) announce(entry *models.ConfigEntry, node string, r models.Reading) error {
	key := node + "/" + string(r.Key)

	p.mu.Lock()
	unit, seen := p.announced[key]
	p.mu.Unlock()
	if seen && unit == r.Unit {
		return nil
	}

	payload, err := json.Marshal(p.discoveryConfig(entry, node, r))
	if err != nil {
		return fmt.Errorf("marshaling discovery for %s: %w", r.Key, err)
	}
	if err := p.send(p.discoveryTopic(node, r.Key), payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.announced[key] = r.Unit
	p.mu.Unlock()
	return nil
}

func (p *Publisher) send(topic string, payload any) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) stateTopic(node string, key models.ProductKind) string {
	return fmt.Sprintf("%s/%s/%s/state", p.topicPrefix, node, key)
}

func (p *Publisher) availabilityTopic(node string, key models.ProductKind) string {
	return fmt.Sprintf("%s/%s/%s/availability", p.topicPrefix, node, key)
}

func (p *Publisher) discoveryTopic(node string, key models.ProductKind) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.discoveryPrefix, node, key)
}

// NodeID is the discovery node for an entry. It combines the identifier with
// the entry ID so two entries for the same station never share topics.
func NodeID(entry *models.ConfigEntry) string {
	var b strings.Builder
	b.WriteString("tidesensors_")
	writeNodePart(&b, entry.Identifier)
	if entry.ID != "" {
		b.WriteByte('_')
		writeNodePart(&b, entry.ID)
	}
	return b.String()
}

func writeNodePart(b *strings.Builder, s string) {
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
}
