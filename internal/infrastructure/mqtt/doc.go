// Package mqtt publishes area lifecycle events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// All topics hang off a configurable prefix (default "areacore"):
//
//	{prefix}/system/status                          retained online/offline
//	{prefix}/area/{projectId}/{areaId}/{event}      area events
//
// Consumers subscribe to {prefix}/area/{projectId}/# to follow one project.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	events := mqtt.NewEventPublisher(client, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS), logger)
//	areaService.SetEventPublisher(events)
package mqtt
