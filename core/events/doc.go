// Package events defines the messages published on the internal event bus as
// the dispatch engine processes inbound events.
package events
