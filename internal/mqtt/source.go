// Package mqtt feeds MQTT messages into the state store. Each subscription
// maps a topic filter to the entity id its payloads update.
package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Source is the state value recorded for MQTT observations.
const Source = "mqtt"

const connectTimeout = 10 * time.Second

// StateSetter is the part of the state store the source writes to.
type StateSetter interface {
	Set(entityID string, value any, source string)
}

// Options configure the broker connection.
type Options struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	QoS           byte
	Subscriptions map[string]string
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Client subscribes to the configured topics and resubscribes after every
// reconnect.
type Client struct {
	opts   Options
	states StateSetter
	client paho.Client
}

// New creates a client. It does not connect until Start.
func New(opts Options, states StateSetter) *Client {
	c := &Client{opts: opts, states: states}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(pc paho.Client) {
			if err := c.subscribeAll(pc); err != nil {
				log.Error().Err(err).Msg("MQTT subscribe failed")
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", opts.Broker).Msg("MQTT connection lost")
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username).SetPassword(opts.Password)
	}

	c.client = paho.NewClient(po)
	return c
}

// Start connects to the broker. Subscriptions are made by the connect
// handler, so they are restored after reconnects.
func (c *Client) Start() error {
	log.Info().Str("broker", c.opts.Broker).Int("subscriptions", len(c.opts.Subscriptions)).Msg("Connecting to MQTT broker")

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// With connect retry enabled the client keeps trying in the background.
		log.Warn().Str("broker", c.opts.Broker).Msg("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Stop unsubscribes and disconnects.
func (c *Client) Stop() {
	if c.client.IsConnected() {
		c.client.Unsubscribe(c.topics()...).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
	log.Info().Msg("MQTT client stopped")
}

func (c *Client) topics() []string {
	topics := make([]string, 0, len(c.opts.Subscriptions))
	for topic := range c.opts.Subscriptions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func (c *Client) subscribeAll(s subscriber) error {
	var errs []error
	for _, topic := range c.topics() {
		entityID := c.opts.Subscriptions[topic]
		token := s.Subscribe(topic, c.opts.QoS, c.handler(entityID))
		if !token.WaitTimeout(connectTimeout) {
			errs = append(errs, fmt.Errorf("subscribe %s: timed out", topic))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", topic, err))
			continue
		}
		log.Debug().Str("topic", topic).Str("entity_id", entityID).Msg("MQTT subscribed")
	}
	return errors.Join(errs...)
}

func (c *Client) handler(entityID string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.states.Set(entityID, string(msg.Payload()), Source)
	}
}
