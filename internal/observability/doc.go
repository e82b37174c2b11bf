// Package observability provides logging and metrics support for the
// observatory services.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for harvest, promotion, indicators and the gateway
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("source", "OPENALEX").Msg("harvest started")
//
// Add harvest context to a logger:
//
//	logger = observability.WithHarvestContext(logger, source, cursor)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("observatory")
//
// Record metrics:
//
//	metrics.RecordHarvestPage("OPENALEX", 200)
//	metrics.RecordPromotion("article", "created")
//	metrics.RecordUnresolved(officialCount, countryCount)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the services:
//
//   - request_id: Gateway request identifier
//   - source: Upstream source (OPENALEX, SUCUPIRA, etc.)
//   - cursor: Pagination cursor of the current harvest page
//   - specific_id: Source-local raw record identifier
//   - doi: Article DOI
//   - indicator_code: Indicator chain identity
//   - index: Document store index name
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
