// Package uploader delivers status records to the control plane. Statuses
// are buffered and flushed on a fixed cadence with most-recent-wins
// deduplication per monitor, giving at-least-once delivery on top of the
// API's idempotent status ids.
package uploader

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/schnooty/agent/internal/eventbus"
	"github.com/schnooty/agent/internal/models"
)

const (
	// uploadInterval drives the periodic flush.
	uploadInterval = 10 * time.Second

	// maxBuffered caps the retry buffer. When full the oldest record is
	// dropped; newer statuses supersede older ones per monitor anyway.
	maxBuffered = 1024
)

// StatusPoster posts one status record to the control plane.
type StatusPoster interface {
	PostStatus(ctx context.Context, status models.MonitorStatus) error
}

// Uploader batches statuses off the bus and uploads them. The first status
// ever received flushes immediately; after that the interval does the work.
type Uploader struct {
	logger   *slog.Logger
	api      StatusPoster
	clock    clock.Clock
	statuses <-chan eventbus.Event

	mu          sync.Mutex
	buffer      []models.MonitorStatus
	everFlushed bool
}

// New creates an Uploader subscribed to the status stream.
func New(logger *slog.Logger, bus *eventbus.EventBus, api StatusPoster, clk clock.Clock) *Uploader {
	return &Uploader{
		logger:   logger.With("component", "uploader"),
		api:      api,
		clock:    clk,
		statuses: bus.Subscribe(eventbus.TopicStatusReceived),
	}
}

// Run buffers statuses and flushes them until ctx ends.
func (u *Uploader) Run(ctx context.Context) error {
	ticker := u.clock.Ticker(uploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			u.flush(ctx)
		case event := <-u.statuses:
			msg, ok := event.Payload.(eventbus.StatusMsg)
			if !ok {
				continue
			}
			if u.add(msg.Status) {
				u.flush(ctx)
			}
		}
	}
}

// add buffers one status and reports whether it should trigger an immediate
// flush, which is the case only before the first upload has ever started.
func (u *Uploader) add(status models.MonitorStatus) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.buffer) >= maxBuffered {
		dropped := u.buffer[0]
		u.buffer = u.buffer[1:]
		u.logger.Warn("status buffer full, dropping oldest record",
			"cap", maxBuffered,
			"monitor", dropped.MonitorName)
	}
	u.buffer = append(u.buffer, status)
	u.logger.Debug("status buffered",
		"monitor", status.MonitorName,
		"buffered", len(u.buffer))
	return !u.everFlushed
}

// flush drains the buffer, uploads the deduplicated batch, and requeues
// whatever failed so the next tick retries it.
func (u *Uploader) flush(ctx context.Context) {
	u.mu.Lock()
	if len(u.buffer) == 0 {
		u.mu.Unlock()
		return
	}
	u.everFlushed = true
	drained := u.buffer
	u.buffer = nil
	u.mu.Unlock()

	batch := buildBatch(drained)
	u.logger.Debug("uploading statuses", "count", len(batch))

	var failed []models.MonitorStatus
	for _, status := range batch {
		if err := u.api.PostStatus(ctx, status); err != nil {
			u.logger.Error("failed to upload status",
				"monitor", status.MonitorName,
				"error", err)
			failed = append(failed, status)
		}
	}
	if len(failed) == 0 {
		u.logger.Debug("upload was successful", "count", len(batch))
		return
	}

	// Failed records go back to the head so the next tick retries them
	// before anything newer.
	u.mu.Lock()
	u.buffer = append(failed, u.buffer...)
	u.mu.Unlock()
}

// buildBatch orders the drained statuses newest first and keeps only the
// most recent record per monitor. Older duplicates are superseded, not
// retried.
func buildBatch(drained []models.MonitorStatus) []models.MonitorStatus {
	sorted := append([]models.MonitorStatus(nil), drained...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[j].Timestamp.Before(sorted[i].Timestamp)
	})

	seen := make(map[string]struct{}, len(sorted))
	batch := sorted[:0]
	for _, status := range sorted {
		if _, dup := seen[status.MonitorName]; dup {
			continue
		}
		seen[status.MonitorName] = struct{}{}
		batch = append(batch, status)
	}
	return batch
}
