// Package notifications delivers job lifecycle events via ntfy.
//
// NewService returns an ntfy publisher when a topic is configured and a no-op
// otherwise. Events map to a fixed title, tag set and priority; per-event
// toggles in the [notifications] config section suppress individual events
// without disabling the transport.
package notifications
