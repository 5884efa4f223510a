// Package server hosts the asset delivery HTTP surface from a single server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// security headers, and CORS so every handler shares common protections and
// instrumentation behind one multiplexer.
package server
