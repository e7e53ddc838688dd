// Package events provides the event stream published while a batch runs.
//
// Every attempt, retry, item outcome and batch milestone is described by an
// Event. Components publish events through an EventEmitter without knowing
// which handlers consume them, so logging-independent observers such as
// metrics or test recorders can be attached without touching the batch code.
//
// The primary components are:
// - Event: a single timeline entry (attempt started, retry scheduled, ...)
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
// - InMemoryEventEmitter: fans events out to registered handlers
// - Recorder: an EventHandler that keeps every event for later inspection
package events
