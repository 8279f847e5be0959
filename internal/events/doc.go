// Package events provides types and interfaces for an event-driven architecture.
//
// Every task status transition is published as a TaskStatusChanged event.
// Handlers such as the metrics recorder and the transition logger subscribe
// through an EventEmitter, so the pipeline does not depend on them directly.
//
// The primary components are:
// - TaskStatusChanged: a single transition of one task
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
