// Package automation runs the rules controller's event loop.
//
// It loads the scene, group and routine definitions into a Catalog and
// drives an Engine that consumes the event bus:
//
//	bridge state (MQTT) ──StateHandler──▶ DeviceUpdated ─┐
//	action request (MQTT) ─ActionRequestHandler─▶ ActionMessage ─┤
//	                                                            ▼
//	                                    ┌──────────────── Engine.Run ───────────────┐
//	                                    │ DeviceUpdated: store, run routines whose  │
//	                                    │   condition holds, send their actions     │
//	                                    │ ActionMessage: execute against snapshot,  │
//	                                    │   publish bridge commands, record state   │
//	                                    └───────────────────────────────────────────┘
//
// # Bridge commands
//
// Applied device states are published to graylogic/command/{integration}/{device}:
//
//	{"id": "<uuid>", "device_id": "l1", "command": "set_state",
//	 "parameters": {"power": true}, "scene_id": "evening", "source": "rules"}
//
// Custom actions go to graylogic/command/{integration}/custom.
//
// # Thread Safety
//
// A Catalog is immutable. An Engine processes one message at a time and
// must be driven by a single Run loop.
package automation
