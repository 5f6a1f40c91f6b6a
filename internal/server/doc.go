// Package server exposes the analysis service over HTTP.
//
// Server owns the single-instance lock, the listener and a bounded worker pool
// for CPU-bound work. Analytics requests with identical canonical parameters
// share one computation. Every route passes through request-id, CORS, bearer
// auth and access-log middleware, and responses are JSON.
package server
