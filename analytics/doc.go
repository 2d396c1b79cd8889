// Package analytics reads the telemetry streams and turns them into
// performance statistics, reasoning summaries and a curated fine-tuning
// dataset. It works on bounded tail reads and never touches live traffic.
package analytics
