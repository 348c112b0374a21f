// Package exports renders population snapshots into durable artifacts. Jobs
// run asynchronously on a single worker goroutine; artifacts land in a blob
// store and progress is observable through export records and audit entries.
package exports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"evocore/internal/blob"
	"evocore/internal/core"
	"evocore/pkg/domain"
)

// Format identifies an artifact encoding.
type Format string

// Supported artifact encodings.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Kind selects which slice of the population an export covers.
type Kind string

// Export kinds.
const (
	KindOrganisms Kind = "organisms"
	KindGroups    Kind = "groups"
)

// Status describes the lifecycle stage of an export job.
type Status string

// Export statuses.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact records one stored export payload.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export job and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request.
type Input struct {
	Kind        Kind
	Formats     []Format
	RequestedBy string
}

// Source supplies the committed population state an export reads.
type Source interface {
	ListOrganisms() []domain.Organism
	ListGroups() []domain.Group
}

// Worker executes export jobs asynchronously.
type Worker struct {
	source Source
	store  blob.Store
	audit  core.AuditRecorder

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewWorker constructs an export worker. The audit recorder may be nil.
func NewWorker(source Source, store blob.Store, audit core.AuditRecorder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for in-flight work, bounded by
// ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns its queued record.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export source not configured")
	}
	if w.store == nil {
		return Record{}, fmt.Errorf("export blob store not configured")
	}
	switch input.Kind {
	case KindOrganisms, KindGroups:
	default:
		return Record{}, fmt.Errorf("unknown export kind %q", input.Kind)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if format != FormatJSON && format != FormatCSV {
			return Record{}, fmt.Errorf("unsupported export format %q", format)
		}
		seen[format] = struct{}{}
		uniq = append(uniq, format)
	}

	now := time.Now().UTC()
	record := Record{
		ID:          newJobID(),
		Kind:        input.Kind,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, record.ID, core.AuditStatusSuccess, "")

	select {
	case w.queue <- task{id: record.ID, input: input}:
	default:
		w.fail(record.ID, "export queue full")
		return Record{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning, "")

	record, ok := w.GetExport(t.id)
	if !ok {
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, rows, contentType, err := w.render(record.Kind, format)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/%s.%s", t.id, record.Kind, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"rows": strconv.Itoa(rows)},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		createdAt := info.LastModified
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		artifacts = append(artifacts, Artifact{
			Key:         key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Rows:        rows,
			CreatedAt:   createdAt,
		})
	}

	w.complete(t.id, artifacts)
}

func (w *Worker) render(kind Kind, format Format) (payload []byte, rows int, contentType string, err error) {
	switch kind {
	case KindOrganisms:
		organisms := w.source.ListOrganisms()
		rows = len(organisms)
		switch format {
		case FormatJSON:
			payload, err = json.Marshal(organisms)
			contentType = "application/json"
		case FormatCSV:
			payload, err = organismsCSV(organisms)
			contentType = "text/csv"
		}
	case KindGroups:
		groups := w.source.ListGroups()
		rows = len(groups)
		switch format {
		case FormatJSON:
			payload, err = json.Marshal(groups)
			contentType = "application/json"
		case FormatCSV:
			payload, err = groupsCSV(groups)
			contentType = "text/csv"
		}
	}
	if err != nil {
		return nil, 0, "", fmt.Errorf("render %s as %s: %w", kind, format, err)
	}
	return payload, rows, contentType, nil
}

func organismsCSV(organisms []domain.Organism) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "generation", "parents", "mutations", "schema_version", "generated_at"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, o := range organisms {
		row := []string{
			o.ID,
			strconv.Itoa(o.Generation),
			strings.Join(o.ParentIDs, "|"),
			strconv.Itoa(len(o.MutationHistory)),
			strconv.Itoa(o.SchemaVersion),
			o.GeneratedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func groupsCSV(groups []domain.Group) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "behavior", "state", "members", "formation_id", "center_x", "center_y", "center_z"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, g := range groups {
		formationID := ""
		if g.FormationID != nil {
			formationID = *g.FormationID
		}
		row := []string{
			g.ID,
			string(g.Behavior),
			string(g.State),
			strings.Join(g.Members, "|"),
			formationID,
			strconv.FormatFloat(g.Center.X, 'g', -1, 64),
			strconv.FormatFloat(g.Center.Y, 'g', -1, 64),
			strconv.FormatFloat(g.Center.Z, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Worker) setStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, core.AuditStatusSuccess, "")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, core.AuditStatusError, reason)
}

func (w *Worker) recordAudit(ctx context.Context, id string, status core.AuditStatus, errMsg string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, core.AuditEntry{
		Operation: "population_export",
		Status:    status,
		EntityID:  id,
		Error:     errMsg,
		At:        time.Now().UTC(),
	})
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newJobID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
