package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEntityState writes an entity state snapshot to InfluxDB.
//
// This is the primary method for recording entity telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - entityID: Unique identifier for the entity (e.g., "sensor-living-temp")
//   - entryID: The config entry that owns the entity's coordinator
//   - fields: Numeric or boolean state fields derived from the snapshot
//
// Example:
//
//	client.WriteEntityState("sensor-living-temp", "entry-a1b2", map[string]interface{}{
//	    "value": 21.5,
//	})
func (c *Client) WriteEntityState(entityID, entryID string, fields map[string]interface{}) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"entity_state",
		map[string]string{
			"entity_id": entityID,
			"entry_id":  entryID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEntityAvailability records an entity availability transition.
//
// Written on every availability flip so that outage windows can be graphed.
//
// Parameters:
//   - entityID: Entity identifier
//   - available: Whether the entity is currently available
func (c *Client) WriteEntityAvailability(entityID string, available bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_availability",
		map[string]string{
			"entity_id": entityID,
		},
		map[string]interface{}{
			"available": available,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCoordinatorPoll records the outcome of one coordinator fetch attempt.
//
// Used to monitor vendor API latency and failure streaks per config entry.
//
// Parameters:
//   - entryID: The config entry whose coordinator performed the fetch
//   - duration: Wall-clock duration of the fetch attempt
//   - success: Whether the fetch succeeded
//   - failureCount: Consecutive-failure counter after this attempt
func (c *Client) WriteCoordinatorPoll(entryID string, duration time.Duration, success bool, failureCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"coordinator_poll",
		map[string]string{
			"entry_id": entryID,
		},
		map[string]interface{}{
			"duration_ms":   duration.Milliseconds(),
			"success":       success,
			"failure_count": failureCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
