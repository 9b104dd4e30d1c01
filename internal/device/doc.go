// Package device provides the Device Registry for Gray Logic Rules.
//
// Integrations report devices into the registry; the rule engine reads an
// immutable DevicesState snapshot of it on every evaluation and asks devices
// to validate state writes derived from rule assignments.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                        Device Registry                          │
//	│                                                                 │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌─────────────┐  │
//	│  │     Registry     │   │    Repository    │   │ Validation  │  │
//	│  │  (registry.go)   │──▶│ (repository.go)  │   │(validation) │  │
//	│  │ • Upsert/Delete  │   │ • SQLite queries │   │ • Names/IDs │  │
//	│  │ • Snapshot()     │   │ • JSON columns   │   │ • State     │  │
//	│  └──────────────────┘   └──────────────────┘   └─────────────┘  │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Key: (integration id, device id), unique across integrations
//   - Device: a managed device (State + active scene) or a sensor (read-only value)
//   - DevicesState: key → Device snapshot handed to rule evaluation
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	snapshot := registry.Snapshot()
//	lamp, _ := snapshot.FindByName("hue", "Living Room Lamp")
//	updated, err := lamp.Apply(map[string]any{"power": true, "brightness": 0.6})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
