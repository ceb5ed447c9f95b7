// Package mqtt provides MQTT client connectivity for brickd.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// brickd uses MQTT to expose the robot to remote controllers: motion
// and sound commands arrive over command topics, and button events,
// motion lifecycle events, and telemetry flow back out.
//
//	Controllers ↔ MQTT Broker ↔ brickd
//
// # Security Considerations
//
//   - TLS is required for off-LAN deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited, far above what a brick emits
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Robot: "brick-001"}
//
//	// Subscribe to all motion commands
//	err = client.Subscribe(topics.AllPilotCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a button event
//	client.Publish(topics.ButtonEvent("enter"), []byte(`{"pressed":true}`), 1, false)
package mqtt
