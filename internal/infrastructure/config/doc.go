// Package config handles loading and validation of melcloudd configuration.
//
// Configuration comes from a YAML file with environment variable overrides:
//
//	accounts:
//	  - name: "home"
//	    email: "user@example.com"
//	    password: "secret"
//	    language: 0
//	    refresh_interval_seconds: 120
//	    device_interval_seconds: 15
//	storage:
//	  dir: "./data"
//	mqtt:
//	  enabled: true
//	  broker:
//	    host: "localhost"
//	    port: 1883
//
// Environment overrides use the MELCLOUDD_ prefix, for example
// MELCLOUDD_ACCOUNT_PASSWORD or MELCLOUDD_MQTT_HOST, so secrets can stay
// out of the file.
//
// Load returns a validated Config; a configuration that fails validation is
// never returned partially applied.
package config
