// Package telemetry holds the append-only record streams written by agents:
// interactions, tool usage and evaluations.
//
// Records are immutable once appended. Writers use the Recorder interface;
// analytics reads bounded windows of the most recent records through Reader.
// FileStore persists each stream as one JSON document per line
// (interactions.jsonl, tool_usage.jsonl, evaluations.jsonl) and serves tail
// reads by scanning the file backwards, so memory and latency are bounded by
// the requested window rather than by file size.
//
// An interaction is typically written twice: a placeholder before execution
// (success=false, phase "started") and the final record after. Both share an
// id and readers collapse records by id, keeping the last one written.
package telemetry
