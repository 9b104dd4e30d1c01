// Package config loads and validates the rules controller configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then GRAYLOGIC_* environment variables. Secrets such as the MQTT
// password and the InfluxDB token should come from the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Automation.File)
package config
