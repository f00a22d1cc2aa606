// Package realtime pushes session-changed events to dependent UIs.
//
// The Hub observes the session Manager (it implements session.Notifier and
// session.Navigator) and fans envelopes out to subscribed clients. WSGateway
// exposes the Hub over WebSocket using the taskdash.events.v1 subprotocol.
package realtime
