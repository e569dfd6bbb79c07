package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Hearth MQTT namespace.
//
// The scheme is flat and ID-keyed: hearth/{category}/{id}/{suffix}.
// Entity topics carry canonical state published by the hub; coordinator
// topics accept inbound commands from external systems.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixEntity is the base for entity state topics.
	TopicPrefixEntity = "hearth/entity"

	// TopicPrefixCoordinator is the base for coordinator command topics.
	TopicPrefixCoordinator = "hearth/coordinator"

	// TopicPrefixEntry is the base for config entry lifecycle topics.
	TopicPrefixEntry = "hearth/entry"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("sensor-living-temp")
//	// Returns: "hearth/entity/sensor-living-temp/state"
type Topics struct{}

// EntityState returns the canonical state topic for an entity.
//
// Example: hearth/entity/sensor-living-temp/state
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixEntity, entityID)
}

// EntityAvailability returns the availability topic for an entity.
// Payload is "online" or "offline", published retained.
//
// Example: hearth/entity/sensor-living-temp/availability
func (Topics) EntityAvailability(entityID string) string {
	return fmt.Sprintf("%s/%s/availability", TopicPrefixEntity, entityID)
}

// CoordinatorRefresh returns the inbound refresh command topic for a
// coordinator. Publishing any payload here requests an immediate
// (debounced) poll of the owning config entry's device.
//
// Example: hearth/coordinator/entry-abc123/refresh
func (Topics) CoordinatorRefresh(entryID string) string {
	return fmt.Sprintf("%s/%s/refresh", TopicPrefixCoordinator, entryID)
}

// EntryEvent returns the lifecycle event topic for a config entry.
// Events include loaded, unloaded, setup_retry, auth_required, failed.
//
// Example: hearth/entry/entry-abc123/event
func (Topics) EntryEvent(entryID string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixEntry, entryID)
}

// SystemStatus returns the hub status topic (also used for the LWT).
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllEntityStates returns a pattern matching all entity state topics.
//
// Pattern: hearth/entity/+/state
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixEntity)
}

// AllCoordinatorRefresh returns a pattern matching all refresh commands.
//
// Pattern: hearth/coordinator/+/refresh
func (Topics) AllCoordinatorRefresh() string {
	return fmt.Sprintf("%s/+/refresh", TopicPrefixCoordinator)
}

// AllEntryEvents returns a pattern matching all entry lifecycle events.
//
// Pattern: hearth/entry/+/event
func (Topics) AllEntryEvents() string {
	return fmt.Sprintf("%s/+/event", TopicPrefixEntry)
}

// AllTopics returns a pattern matching all Hearth topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// EntryIDFromRefreshTopic extracts the entry ID from a coordinator refresh
// topic. Returns false if the topic does not match the expected shape.
//
// Example: hearth/coordinator/entry-1/refresh -> "entry-1"
func EntryIDFromRefreshTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixCoordinator+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/refresh")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
