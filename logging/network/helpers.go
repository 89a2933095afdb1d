package network

import (
	"context"

	"swingy/server/logging"
)

const (
	// EventMalformedFrame is emitted when an inbound frame cannot be decoded.
	EventMalformedFrame logging.EventType = "network.malformed_frame"
	// EventCommandRejected is emitted when intake refuses a decoded command.
	EventCommandRejected logging.EventType = "network.command_rejected"
	// EventSendDropped is emitted when an outbound frame is discarded.
	EventSendDropped logging.EventType = "network.send_dropped"
)

// MalformedFramePayload describes an undecodable frame.
type MalformedFramePayload struct {
	Bytes int    `json:"bytes"`
	Error string `json:"error"`
}

// CommandRejectedPayload captures why a command was refused.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// SendDroppedPayload captures an outbound drop.
type SendDroppedPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// MalformedFrame publishes a debug event for a dropped inbound frame.
func MalformedFrame(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MalformedFramePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMalformedFrame,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CommandRejected publishes a debug event for a refused command.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SendDropped publishes a warning when a frame could not be queued.
func SendDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SendDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSendDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
