package mqtt

import "github.com/sweeney/genset-controller/internal/logic"

// NopPublisher discards everything. Used when MQTT is disabled.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(logic.Event) error { return nil }

// PublishSystem discards the event.
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
