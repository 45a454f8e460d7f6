package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the subset of Client the EventPublisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// AreaEvent is the JSON body of an area event message.
type AreaEvent struct {
	Event     string `json:"event"`
	ProjectID int64  `json:"projectId"`
	AreaID    int64  `json:"areaId"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// EventPublisher turns area service notifications into MQTT messages.
type EventPublisher struct {
	pub    Publisher
	topics Topics
	qos    byte
	logger Logger
}

// NewEventPublisher creates an EventPublisher sending through pub.
func NewEventPublisher(pub Publisher, prefix string, qos byte, logger Logger) *EventPublisher {
	return &EventPublisher{pub: pub, topics: Topics{Prefix: prefix}, qos: qos, logger: logger}
}

// PublishAreaEvent sends one event. Failures are returned and also logged,
// since callers treat events as best effort.
func (p *EventPublisher) PublishAreaEvent(ctx context.Context, projectID, areaID int64, event string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(AreaEvent{
		Event:     event,
		ProjectID: projectID,
		AreaID:    areaID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}

	topic := p.topics.AreaEvent(projectID, areaID, event)
	if err := p.pub.Publish(topic, body, p.qos, false); err != nil {
		if p.logger != nil {
			p.logger.Warn("area event not published", "topic", topic, "error", err)
		}
		return err
	}
	return nil
}
