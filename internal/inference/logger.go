// Package inference records language-model usage rows so every token
// spent is attributed to a user and a feature. Writes happen off the
// calling goroutine; billing bookkeeping never blocks a pipeline.
package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

// Recorder persists usage rows asynchronously.
type Recorder struct {
	store  store.UsageStore
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder over the given usage store.
func NewRecorder(usageStore store.UsageStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: usageStore, logger: logger}
}

// Call describes one model invocation.
type Call struct {
	UserID           string
	Feature          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
	Err              error
}

// Record persists the call in the background. A record lands whether
// the model call succeeded or not.
func (r *Recorder) Record(ctx context.Context, call Call) {
	record := models.UsageRecord{
		UserID:           call.UserID,
		Feature:          call.Feature,
		Model:            call.Model,
		PromptTokens:     call.PromptTokens,
		CompletionTokens: call.CompletionTokens,
		TotalTokens:      call.TotalTokens,
		Success:          call.Err == nil,
		DurationMs:       call.Duration.Milliseconds(),
	}
	if call.Err != nil {
		msg := store.TruncateError(call.Err.Error())
		record.ErrorMessage = &msg
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the caller's context so a cancelled pipeline
		// still gets its usage accounted.
		if err := r.store.InsertUsageRecord(context.Background(), record); err != nil {
			r.logger.Error("failed to record usage", "error", err, "user_id", call.UserID, "feature", call.Feature)
		}
	}()
}

// Flush waits for in-flight writes. Called during shutdown.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
