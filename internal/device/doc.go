// Package device manages HDevices, the hardware registered inside a project.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                       device.Service                       │
//	│  Guard (Device bits) ─▶ project.CheckAccess ─▶ Repository  │
//	└──────────────────────────────┬────────────────────────────┘
//	                               │
//	                               ▼
//	                  ┌───────────────────────┐
//	                  │   SQLite (devices)    │
//	                  │ FK project ON CASCADE │
//	                  └───────────────────────┘
//
// A device belongs to exactly one project and can be placed in any number of
// that project's areas. Removing a device removes those placements too.
//
// # Usage
//
//	svc := device.NewService(device.NewSQLiteRepository(db), projects, guard, recorder, logger)
//	d := &device.Device{DeviceName: "thermostat-1", ProjectID: 3}
//	if err := svc.Save(ctx, d); err != nil {
//	    return err
//	}
package device
