// Package influxdb records authorisation decisions and area activity in
// InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//   - authz_decisions: one point per Guard decision, tagged by resource,
//     action and outcome
//   - area_events: one point per area lifecycle event, tagged by event and
//     project
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	guard.AddObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Write errors surface through the
// SetOnError callback because writes are asynchronous.
package influxdb
