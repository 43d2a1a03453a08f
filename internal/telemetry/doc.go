// Package telemetry centralizes OpenTelemetry initialization: a
// TracerProvider and MeterProvider exporting over OTLP gRPC, registered
// as the global providers so orchestrator turn spans reach the collector.
package telemetry
