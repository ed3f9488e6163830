package runtime

import (
	configpkg "github.com/drblury/hermes/internal/runtime/config"
)

// transportConfig hands the service configuration to transports and names
// consumer queues after the registrations.
type transportConfig struct {
	*configpkg.Config
	registry *Registry
}

func (c transportConfig) QueueName(topic string) string {
	if topic == c.JobsTopic {
		return topic + ".queue"
	}
	if reg, ok := c.registry.ForRoutingKey(topic); ok {
		return reg.Consumer.Queue
	}
	return ""
}
