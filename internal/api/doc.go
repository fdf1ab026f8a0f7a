// Package api exposes the triage operations over HTTP. It decodes and
// validates requests, calls the orchestrator and maps its errors to status
// codes without leaking internal details to clients.
package api
