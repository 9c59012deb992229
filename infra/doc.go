// Package infra holds the technical adapters of the berth planner: the MQTT
// event transport and notifier, metrics sinks, the sqlite usage store, the
// zerolog logger and the Sentry monitor. Adapters depend on the interfaces
// declared under core, never the other way round.
package infra
