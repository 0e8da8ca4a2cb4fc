package ports

// Metric names shared by the pipeline and the observability adapters.
const (
	MetricFramesIngested  = "gridbench_frames_ingested_total"
	MetricInsightsEmitted = "gridbench_insights_emitted_total"
	MetricDLQ             = "gridbench_dlq_total"
	MetricQueueDropped    = "gridbench_queue_dropped_total"
	MetricWALSize         = "gridbench_wal_size_bytes"
	MetricQueueLength     = "gridbench_queue_length"
	MetricFrameRate       = "gridbench_frame_rate_hz"
	MetricTelemetryStale  = "gridbench_telemetry_stale"
	MetricDetectorLatency = "gridbench_detector_latency_seconds"
	MetricSinkLatency     = "gridbench_sink_latency_seconds"
)
