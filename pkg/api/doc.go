// Package api exposes the control surface over HTTP.
//
// Handlers are thin: they parse the request, call one service operation and
// map typed business errors onto status codes. All domain decisions live in
// the service packages. Routes are versioned under /api/v1.
package api
