package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mlavoie/feedgo/internal/debug"
)

// ErrNotConnected is returned by Publish when no connection handle is
// held. The caller must Connect first; publishing never dials
// implicitly on a possibly-stale handle.
var ErrNotConnected = errors.New("not connected to broker")

// qosAtLeastOnce matches the telemetry delivery contract.
const qosAtLeastOnce byte = 1

// Dialer returns a fresh broker client. A new client is dialed for
// every connection attempt; a handle declared broken is never reused.
type Dialer func() mqtt.Client

// Publisher owns the broker connection handle and the bounded retry
// discipline around it. A nil client means Disconnected; Connect
// replaces the handle wholesale. Accessed only from the loop goroutine.
type Publisher struct {
	dial    Dialer
	topic   string
	connect RetryPolicy
	publish RetryPolicy
	client  mqtt.Client
	sleep   func(time.Duration)
}

// NewPublisher builds a Publisher dialing the given broker. The
// auto-reconnect machinery of the client library is disabled: the
// reconnection policy belongs to this package and the control loop.
func NewPublisher(broker, clientID, topic string) *Publisher {
	dial := func() mqtt.Client {
		opts := mqtt.NewClientOptions()
		opts.AddBroker(broker)
		opts.SetClientID(clientID)
		opts.SetAutoReconnect(false)
		opts.SetConnectRetry(false)
		return mqtt.NewClient(opts)
	}
	return newPublisher(dial, topic, ConnectPolicy, PublishPolicy)
}

func newPublisher(dial Dialer, topic string, connect, publish RetryPolicy) *Publisher {
	return &Publisher{
		dial:    dial,
		topic:   topic,
		connect: connect,
		publish: publish,
		sleep:   time.Sleep,
	}
}

// Connected reports whether a connection handle is currently held.
func (p *Publisher) Connected() bool {
	return p.client != nil
}

// Topic returns the bowl state topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Connect establishes a fresh connection handle with bounded retry.
// No-op when already connected. On exhaustion it returns an error and
// leaves the publisher disconnected; the caller treats that as
// recoverable and tries again on a later iteration.
func (p *Publisher) Connect() error {
	if p.client != nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= p.connect.MaxAttempts; attempt++ {
		client := p.dial()
		token := client.Connect()
		switch {
		case !token.WaitTimeout(p.connect.Timeout):
			lastErr = fmt.Errorf("connect timeout after %v", p.connect.Timeout)
			client.Disconnect(0)
		case token.Error() != nil:
			lastErr = token.Error()
			client.Disconnect(0)
		default:
			debug.Live("Telemetry: connected to broker (attempt %d/%d)", attempt, p.connect.MaxAttempts)
			p.client = client
			return nil
		}

		debug.Attempt("connect", attempt, p.connect.MaxAttempts, lastErr)
		if attempt < p.connect.MaxAttempts {
			p.sleep(p.connect.Backoff)
		}
	}

	return fmt.Errorf("connect to broker failed after %d attempts: %w", p.connect.MaxAttempts, lastErr)
}

// Publish delivers one reading with bounded retry. Returns nil on the
// first accepted delivery; after exhausting attempts the reading is
// dropped (never buffered) and the error surfaces so the caller can
// count consecutive failures.
func (p *Publisher) Publish(r Reading) error {
	if p.client == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.publish.MaxAttempts; attempt++ {
		token := p.client.Publish(p.topic, qosAtLeastOnce, false, payload)
		switch {
		case !token.WaitTimeout(p.publish.Timeout):
			lastErr = fmt.Errorf("publish timeout after %v", p.publish.Timeout)
		case token.Error() != nil:
			lastErr = token.Error()
		default:
			debug.Publish(p.topic, true)
			return nil
		}

		debug.Attempt("publish", attempt, p.publish.MaxAttempts, lastErr)
		if attempt < p.publish.MaxAttempts {
			p.sleep(p.publish.Backoff)
		}
	}

	debug.Publish(p.topic, false)
	return fmt.Errorf("publish failed after %d attempts: %w", p.publish.MaxAttempts, lastErr)
}

// Disconnect discards the connection handle. Called after repeated
// publish failures (so the next iteration dials fresh) and at shutdown.
func (p *Publisher) Disconnect() {
	if p.client == nil {
		return
	}
	p.client.Disconnect(250) // ms grace period
	p.client = nil
	debug.Live("Telemetry: connection handle discarded")
}
