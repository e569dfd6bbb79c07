// Package mqtt provides MQTT client connectivity for Hearth Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Hearth publishes canonical entity state and availability over MQTT so
// that dashboards, bridges, and companion services can consume them
// without talking to the REST API. Inbound refresh commands on the
// coordinator topics let external systems request an immediate poll.
//
//	Hearth Core ↔ MQTT Broker ↔ Dashboards / Bridges / Tooling
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to refresh commands for all coordinators
//	err = client.Subscribe(mqtt.Topics{}.AllCoordinatorRefresh(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish entity state
//	topic := mqtt.Topics{}.EntityState("sensor-living-temp")
//	client.PublishRetained(topic, []byte(`{"value":21.5}`))
package mqtt
