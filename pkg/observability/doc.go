// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Overview
//
// This package centralizes observability infrastructure for callgate: JSON logging with
// request/account context plumbing, metrics collection for the admission and billing
// paths, and liveness/readiness probes over the Postgres and Redis dependencies.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account_id", id).Info("call admitted")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
package observability
