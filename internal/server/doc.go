// Package server manages HTTP listener lifecycle: non-blocking start,
// graceful shutdown within a configured timeout, and SIGINT/SIGTERM
// handling. The router's API and metrics endpoints each run behind their
// own Manager so one can be restarted or firewalled independently of
// the other.
package server
