// Package mqtt connects the rules controller to the broker shared with the
// integration bridges.
//
// Bridges publish device state on graylogic/state/<integration>/<device_id>
// and receive commands on graylogic/command/<integration>/<device_id>.
// The controller mirrors every action it executes on
// graylogic/core/action/<kind>, and other services may request actions on
// graylogic/request/action. A retained status message on
// graylogic/system/status doubles as the Last Will.
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeStates(), 1,
//	    func(topic string, payload []byte) error {
//	        integrationID, deviceID, _ := mqtt.ParseBridgeState(topic)
//	        ...
//	    })
//
// Subscriptions are tracked and restored after every reconnect.
package mqtt
