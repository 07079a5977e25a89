// Package pkg provides shared utilities for the h2dtx TX engine.
//
// This package contains common functionality used across the txfifo, bus,
// upperq, devinit, and stats packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for the TX engine's error kinds
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with engine-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "engine configured", "busBlockSize", 256)
//
// # Errors
//
// Common engine errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrNoSpace) {
//	    // Halt the upper queue and retry later.
//	}
package pkg
