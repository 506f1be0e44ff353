package bus

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldwatch/aegis/internal/ingest"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
)

// Topics spec.md §4.3 subscribes to; wardragon/drone/+ carries the kit ID
// as its last segment, the rest carry it in the JSON body (seen_by or
// kit_id); a message with no kit ID from either source is rejected.
const (
	TopicDronesShared  = "wardragon/drones"
	TopicDronePerKit   = "wardragon/drone/+"
	TopicAircraft      = "wardragon/aircraft"
	TopicSignals       = "wardragon/signals"
	TopicSystemAttrs   = "wardragon/system/attrs"
)

// Config configures a Subscriber.
type Config struct {
	BrokerURL string
	ClientID  string
	Topics    []string
}

// Subscriber consumes wardragon/* MQTT topics and hands normalized
// records to Sink, auto-registering any kit ID not yet in the registry.
type Subscriber struct {
	cfg      Config
	client   mqtt.Client
	sink     ingest.Sink
	registry ingest.RegistryUpdater
	log      logging.Logger

	received metrics.Counter
	rejected metrics.Counter
}

// New builds a Subscriber. It does not connect until Run is called.
func New(cfg Config, sink ingest.Sink, registry ingest.RegistryUpdater, log logging.Logger, provider metrics.Provider) *Subscriber {
	if log == nil {
		log = logging.NewNop()
	}
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{TopicDronesShared, TopicDronePerKit, TopicAircraft, TopicSignals, TopicSystemAttrs}
	}
	s := &Subscriber{cfg: cfg, sink: sink, registry: registry, log: log}
	s.received = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "bus", Name: "messages_received_total", Help: "MQTT messages received", Labels: []string{"topic"}}})
	s.rejected = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "bus", Name: "messages_rejected_total", Help: "MQTT messages that failed to normalize", Labels: []string{"topic"}}})
	return s
}

// Run connects to the broker and subscribes to every configured topic at
// QoS 1, blocking until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer s.client.Disconnect(250)

	for _, topic := range s.cfg.Topics {
		topic := topic
		if token := s.client.Subscribe(topic, 1, s.handler(ctx)); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}

	<-ctx.Done()
	return nil
}

// handler returns a paho MessageHandler that normalizes the payload and
// hands it to the sink. QoS 1 delivery means paho only advances its
// internal ack state after this callback returns, so a handoff failure
// that returns without error still risks redelivery — we treat both a
// successful handoff and a recognized-but-malformed payload as "handled",
// and only a sink write error leaves the message for redelivery.
func (s *Subscriber) handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		if s.received != nil {
			s.received.Inc(1, topic)
		}
		var err error
		switch {
		case topic == TopicSignals:
			err = s.handleSignal(ctx, msg.Payload())
		case topic == TopicSystemAttrs || strings.HasPrefix(topic, TopicSystemAttrs+"/"):
			err = s.handleSystemAttrs(ctx, topicSuffix(topic, TopicSystemAttrs), msg.Payload())
		case topic == TopicDronesShared:
			err = s.handleDrone(ctx, "", models.TrackTypeDrone, msg.Payload())
		case topic == TopicAircraft:
			err = s.handleDrone(ctx, "", models.TrackTypeAircraft, msg.Payload())
		case strings.HasPrefix(topic, "wardragon/drone/"):
			err = s.handleDrone(ctx, strings.TrimPrefix(topic, "wardragon/drone/"), models.TrackTypeDrone, msg.Payload())
		}
		if err != nil {
			if s.rejected != nil {
				s.rejected.Inc(1, topic)
			}
			s.log.WarnCtx(ctx, "bus: failed to normalize message")
		}
	}
}

func (s *Subscriber) handleDrone(ctx context.Context, topicKitID, trackType string, payload []byte) error {
	track, err := RemapDrone(topicKitID, trackType, payload)
	if err != nil {
		return err
	}
	s.ensureRegistered(ctx, track.KitID, track.ObservedAt)
	return s.sink.InsertTracks(ctx, []models.Track{track})
}

func (s *Subscriber) handleSignal(ctx context.Context, payload []byte) error {
	signal, err := RemapSignal("", payload)
	if err != nil {
		return err
	}
	s.ensureRegistered(ctx, signal.KitID, signal.ObservedAt)
	return s.sink.InsertSignals(ctx, []models.Signal{signal})
}

func (s *Subscriber) handleSystemAttrs(ctx context.Context, topicKitID string, payload []byte) error {
	sample, err := RemapSystemAttrs(topicKitID, payload)
	if err != nil {
		return err
	}
	s.ensureRegistered(ctx, sample.KitID, sample.ObservedAt)
	return s.sink.InsertHealth(ctx, []models.HealthSample{sample})
}

func (s *Subscriber) ensureRegistered(ctx context.Context, kitID string, observedAt time.Time) {
	if _, ok := s.registry.Get(kitID); !ok {
		s.registry.AutoRegister(ctx, kitID, models.SourceMQTT, observedAt)
		return
	}
	s.registry.Touch(kitID, models.SourceMQTT, observedAt)
}

func topicSuffix(topic, prefix string) string {
	if topic == prefix {
		return ""
	}
	return strings.TrimPrefix(topic, prefix+"/")
}
