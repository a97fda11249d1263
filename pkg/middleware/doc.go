// Package middleware provides HTTP middleware for the API server.
//
// Middleware is composed outside the handlers: request identification and
// logging wrap everything, session authentication wraps the routes that
// act on behalf of an account.
package middleware
