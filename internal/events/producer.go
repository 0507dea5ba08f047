package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"companion_gateway/internal/logger"

	kafka "github.com/segmentio/kafka-go"
)

const sendTimeout = 5 * time.Second

// Producer publishes room events and game results on their topics. Sends are
// synchronous with a bounded confirmation timeout; a failed send is logged
// and alarmed but never rolls back the state transition that produced it.
type Producer struct {
	writer         *kafka.Writer
	resultTopic    string
	roomEventTopic string
}

func NewProducer(brokers []string, clientID, resultTopic, roomEventTopic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: sendTimeout,
		Transport:    &kafka.Transport{ClientID: clientID},
	}
	return &Producer{
		writer:         w,
		resultTopic:    resultTopic,
		roomEventTopic: roomEventTopic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// SendRoomEvent wraps body in the RoomEvent envelope and publishes it keyed
// by key (normally the room id) so one room's events stay ordered on one
// partition.
func (p *Producer) SendRoomEvent(ctx context.Context, key, traceID string, eventType RoomEventType, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal room event body: %w", err)
	}
	envelope := RoomEvent{
		EventType: eventType,
		EventBody: raw,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal room event envelope: %w", err)
	}
	if err := p.send(ctx, p.roomEventTopic, key, value); err != nil {
		logger.Alarm("event_publish", "failed to send room event",
			"topic", p.roomEventTopic, "event_type", eventType.String(), "trace_id", traceID, "error", err)
		return err
	}
	logger.Debug("sent room event", "topic", p.roomEventTopic, "event_type", eventType.String(), "trace_id", traceID)
	return nil
}

// SendGameResult publishes msg keyed by key (normally the order id).
func (p *Producer) SendGameResult(ctx context.Context, key string, msg *GameResultMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal game result: %w", err)
	}
	if err := p.send(ctx, p.resultTopic, key, value); err != nil {
		logger.Alarm("event_publish", "failed to send game result",
			"topic", p.resultTopic, "trace_id", msg.TraceID, "error", err)
		return err
	}
	logger.Debug("sent game result", "topic", p.resultTopic, "trace_id", msg.TraceID)
	return nil
}

func (p *Producer) send(ctx context.Context, topic, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}
