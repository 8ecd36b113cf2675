// Package ports defines the interfaces between the dispatch core and its
// collaborators. Sink ports are implemented by error reporters and called by
// the dispatcher. Client ports are implemented by outbound adapters and
// called by request handlers.
package ports
