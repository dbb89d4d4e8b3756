// Package mqtt provides MQTT client connectivity for melcloudd.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// melcloudd republishes device identity and state onto MQTT and accepts
// set commands back, so home automation stacks can treat MELCloud units
// like any other MQTT device:
//
//	MELCloud ↔ melcloudd ↔ MQTT Broker ↔ consumers (Home Assistant, Node-RED, ...)
//
// # Topic scheme
//
// All topics share one configurable prefix (default "melcloudd"):
//
//	{prefix}/{account}/{family}/{device_id}/info    retained identity
//	{prefix}/{account}/{family}/{device_id}/state   retained state
//	{prefix}/{account}/{family}/{device_id}/set     command intake
//	{prefix}/{account}/event/{kind}                 warnings, errors, lifecycle
//	{prefix}/system/status                          online/offline + LWT
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - State payloads never include MELCloud credentials or tokens
package mqtt
