// Package log provides structured logging and per-request audit trails
// for all five node components.
package log
