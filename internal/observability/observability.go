// Package observability provides per-stage timing for the indexing
// pipeline and retrieval explainability for the retriever, generalizing
// the teacher's JSONL event logger (internal/metrics.Logger) into a
// structured-span tracer plus an explanation payload builder.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// StageTiming records how long one named pipeline stage took for one run.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
	Err      string        `json:"error,omitempty"`
}

// Tracer accumulates per-stage timings for a single indexing or retrieval
// run and emits them as JSONL events, mirroring the teacher's
// internal/metrics.Logger wire format so existing log tooling keeps working.
type Tracer struct {
	mu      sync.Mutex
	file    *os.File
	timings []StageTiming
	logger  *slog.Logger
}

// NewTracer opens (or creates) a JSONL trace file at path. An empty path
// disables file output; timings are still accumulated in-process.
func NewTracer(path string, logger *slog.Logger) (*Tracer, error) {
	t := &Tracer{logger: logger}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		t.file = f
	}
	return t, nil
}

// Close flushes the trace file handle, if any.
func (t *Tracer) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}

// Stage times fn, records the timing, and returns fn's error unchanged.
// The orchestrator wraps each of its stages (discover, parse_and_ir, chunk,
// nav_docs, patterns, embed, persist_chunks, index, type_snapshot_merge)
// in it when a Tracer is set, so the orchestrator's result object can
// report per-stage timings per spec §4.8.
func (t *Tracer) Stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	timing := StageTiming{Stage: name, Duration: d}
	if err != nil {
		timing.Err = err.Error()
	}

	t.mu.Lock()
	t.timings = append(t.timings, timing)
	t.mu.Unlock()

	t.emit("stage", map[string]any{"stage": name, "duration_ms": d.Milliseconds(), "error": timing.Err})
	return err
}

// Timings returns a copy of every recorded stage timing for this tracer.
func (t *Tracer) Timings() []StageTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StageTiming, len(t.timings))
	copy(out, t.timings)
	return out
}

func (t *Tracer) emit(event string, data map[string]any) {
	if t.logger != nil {
		args := make([]any, 0, len(data)*2)
		for k, v := range data {
			args = append(args, k, v)
		}
		t.logger.Debug(event, args...)
	}
	if t.file == nil {
		return
	}
	e := map[string]any{"ts": time.Now().UTC().Format(time.RFC3339), "event": event}
	for k, v := range data {
		e[k] = v
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.file.Write(line)
	t.file.Write([]byte("\n"))
}

// StrategyExplain records one retrieval strategy's contribution (or lack
// of one) to a fused result: how many hits it returned, whether it timed
// out, and its weight in the active profile.
type StrategyExplain struct {
	Strategy  string  `json:"strategy"`
	Hits      int     `json:"hits"`
	Weight    float64 `json:"weight"`
	TimedOut  bool    `json:"timed_out"`
	Error     string  `json:"error,omitempty"`
	LatencyMs int64   `json:"latency_ms"`
}

// Explanation is the retrieval explainability payload attached to a
// query's result set: which strategies ran, the dominant intent, and the
// fusion parameters used, so a caller can answer "why did I get this".
type Explanation struct {
	Query           string            `json:"query"`
	DominantIntent  string            `json:"dominant_intent"`
	IntentScores    map[string]float64 `json:"intent_scores"`
	Strategies      []StrategyExplain `json:"strategies"`
	FusionVersion   string            `json:"fusion_version"`
	ConsensusBoosts map[string]float64 `json:"consensus_boosts,omitempty"`
}

// NewExplanation starts an explanation payload for one query.
func NewExplanation(query, fusionVersion string) *Explanation {
	return &Explanation{Query: query, FusionVersion: fusionVersion, IntentScores: map[string]float64{}}
}

// RecordStrategy appends one strategy's outcome to the explanation.
func (e *Explanation) RecordStrategy(s StrategyExplain) {
	e.Strategies = append(e.Strategies, s)
}
