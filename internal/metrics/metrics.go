// Package metrics defines the daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StateTransitions counts orchestrator state transitions.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_state_transitions_total",
		Help: "Total orchestrator state transitions",
	}, []string{"from", "to"})

	// ButtonEvents counts decoded button gestures.
	ButtonEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_button_events_total",
		Help: "Total decoded button events",
	}, []string{"kind"})

	// DiscardedEvents counts button events that matched no transition.
	DiscardedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_discarded_events_total",
		Help: "Total button events discarded because no transition matched",
	}, []string{"state"})

	// RecordingsStarted counts capture subprocess launches.
	RecordingsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetyscribe_recordings_started_total",
		Help: "Total recordings started",
	})

	// RecordingBytes tracks finalized recording sizes.
	RecordingBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safetyscribe_recording_bytes",
		Help:    "Finalized recording file sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8), // 16KiB .. ~256MiB
	})

	// Uploads counts upload attempts by outcome (ok, upload_failed, bad_response).
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_uploads_total",
		Help: "Total upload attempts by outcome",
	}, []string{"outcome"})

	// UploadDuration tracks the upload round-trip latency.
	UploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safetyscribe_upload_duration_seconds",
		Help:    "Duration of upload round trips",
		Buckets: prometheus.ExponentialBuckets(0.25, 2.0, 10), // 250ms .. ~2m
	})

	// Fetches counts response-audio fetch attempts by outcome.
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_fetches_total",
		Help: "Total response audio fetches by outcome",
	}, []string{"outcome"})

	// Playbacks counts playback subprocess completions by outcome.
	Playbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_playbacks_total",
		Help: "Total playbacks by outcome",
	}, []string{"outcome"})

	// LEDWriteErrors counts skipped LED frames due to bus write failures.
	LEDWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safetyscribe_led_write_errors_total",
		Help: "Total LED bus write failures (frame skipped)",
	})

	// ProcTerminations counts subprocess terminations by signal and result.
	ProcTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_proc_terminations_total",
		Help: "Total subprocess termination attempts",
	}, []string{"signal", "result"})

	// ErrorsRecovered counts trips through the recovering-error state.
	ErrorsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safetyscribe_errors_recovered_total",
		Help: "Total recoverable errors signalled and absorbed",
	}, []string{"class"})
)

// IncProcTerminate records a termination attempt outcome.
func IncProcTerminate(signal, result string) {
	ProcTerminations.WithLabelValues(signal, result).Inc()
}
