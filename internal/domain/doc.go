// Package domain holds the error model shared by the dispatch core and its
// adapters: sentinel errors, HTTP-status carrying errors, and the status
// classes that decide how a response is finalized.
package domain
