package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingMetrics struct {
	mu      sync.Mutex
	samples []metricSample
}

type metricSample struct {
	operation string
	success   bool
	duration  time.Duration
}

func (r *recordingMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, metricSample{operation: operation, success: success, duration: duration})
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type recordingTracer struct {
	mu    sync.Mutex
	spans []recordedSpan
}

type recordedSpan struct {
	operation string
	err       error
}

func (r *recordingTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &recordingSpan{tracer: r, operation: operation}
}

type recordingSpan struct {
	tracer    *recordingTracer
	operation string
}

func (s *recordingSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.spans = append(s.tracer.spans, recordedSpan{operation: s.operation, err: err})
}

func TestServiceRecordsObservabilitySignals(t *testing.T) {
	metrics := &recordingMetrics{}
	audit := &recordingAudit{}
	tracer := &recordingTracer{}

	svc := newTestService(t,
		WithMetricsRecorder(metrics),
		WithAuditRecorder(audit),
		WithTracer(tracer),
	)
	ctx := context.Background()

	if _, _, err := svc.SpawnOrganism(ctx, "org-1"); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, _, err := svc.BreedOrganisms(ctx, "child", "org-1", "ghost"); err == nil {
		t.Fatalf("expected breed failure for missing parent")
	}

	byOp := make(map[string]metricSample)
	metrics.mu.Lock()
	for _, s := range metrics.samples {
		byOp[s.operation] = s
	}
	metrics.mu.Unlock()

	spawn, ok := byOp["spawn_organism"]
	if !ok || !spawn.success {
		t.Fatalf("expected successful spawn_organism sample, got %+v", byOp)
	}
	breed, ok := byOp["breed_organisms"]
	if !ok || breed.success {
		t.Fatalf("expected failed breed_organisms sample, got %+v", byOp)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	var sawSpawn, sawBreed bool
	for _, entry := range audit.entries {
		switch entry.Operation {
		case "spawn_organism":
			sawSpawn = true
			if entry.Status != AuditStatusSuccess || entry.EntityID != "org-1" {
				t.Fatalf("unexpected spawn audit entry %+v", entry)
			}
		case "breed_organisms":
			sawBreed = true
			if entry.Status != AuditStatusError || entry.Error == "" {
				t.Fatalf("unexpected breed audit entry %+v", entry)
			}
		}
	}
	if !sawSpawn || !sawBreed {
		t.Fatalf("missing audit entries: %+v", audit.entries)
	}

	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	if len(tracer.spans) < 3 {
		t.Fatalf("expected spans for register, spawn, and breed, got %d", len(tracer.spans))
	}
}

func TestNoopLoggerIsDefault(t *testing.T) {
	svc := NewInMemoryService(NewRulesEngine())
	if _, ok := svc.logger.(noopLogger); !ok {
		t.Fatalf("expected noop logger default, got %T", svc.logger)
	}
	// Calls on the noop logger must be safe.
	svc.logger.Debug("debug", "k", 1)
	svc.logger.Info("info")
	svc.logger.Warn("warn")
	svc.logger.Error("error", "err", nil)
}
