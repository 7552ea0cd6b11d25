// Package observability builds the zap logger and the Prometheus collectors
// shared by the HTTP layer, the mutation workflow and the background jobs.
package observability
