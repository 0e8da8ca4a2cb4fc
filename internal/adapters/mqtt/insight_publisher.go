package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// Config for the insight publisher.
type Config struct {
	Broker      string        `yaml:"broker"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos"`
	Retain      bool          `yaml:"retain"`
	Timeout     time.Duration `yaml:"timeout"`
	CACert      string        `yaml:"ca_cert"`
}

func (c *Config) ApplyDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "gridbench"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// client is the slice of paho.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// InsightPublisher sends one message per insight to
// <prefix>/insights/<event_type>.
type InsightPublisher struct {
	cfg    Config
	client client
	conn   paho.Client
}

func NewInsightPublisher(cfg Config) (*InsightPublisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("gridbench_" + uuid.NewString()[:8])
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	if cfg.CACert != "" {
		tlsCfg, err := loadCA(cfg.CACert)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Printf("mqtt: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})

	c := paho.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(cfg.Timeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &InsightPublisher{cfg: cfg, client: c, conn: c}, nil
}

func loadCA(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse CA certificate %s", path)
	}
	return &tls.Config{RootCAs: pool}, nil
}

func (p *InsightPublisher) Name() string { return "mqtt" }

// Publish waits for each message up to the configured timeout and returns
// every failure joined.
func (p *InsightPublisher) Publish(insights []domain.Insight) error {
	var errs []error
	for _, in := range insights {
		payload, err := json.Marshal(in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		topic := p.topic(in.EventType)
		token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
		if !token.WaitTimeout(p.cfg.Timeout) {
			errs = append(errs, fmt.Errorf("mqtt publish %s: timed out", topic))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("mqtt publish %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

func (p *InsightPublisher) topic(eventType string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(eventType), " ", "_"))
	return p.cfg.TopicPrefix + "/insights/" + slug
}

func (p *InsightPublisher) Close() {
	if p.conn != nil && p.conn.IsConnected() {
		p.conn.Disconnect(250)
		log.Printf("mqtt: disconnected from %s", p.cfg.Broker)
	}
}

var _ ports.InsightSink = (*InsightPublisher)(nil)
