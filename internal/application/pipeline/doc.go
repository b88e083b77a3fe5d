// Package pipeline runs the two idempotent phases of the order pipeline:
// ingestion from the portal into the raw store, and transformation of the
// raw store into flattened rows.
package pipeline
