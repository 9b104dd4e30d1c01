// Package influxdb records device telemetry for every state the controller
// applies.
//
// Telemetry is optional: Connect returns ErrDisabled when influxdb.enabled is
// false and the executor runs without it. Writes are batched by the
// influxdb-client-go non-blocking write API; failures arrive asynchronously
// through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    return err
//	}
//	client.WriteDeviceState(d)
package influxdb
