package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/repository"
)

const (
	WrongBookBatchSize    = 50
	WrongBookBatchTimeout = 2 * time.Second
	WrongBookPollTimeout  = 1 * time.Second
)

// WrongBookRecorder persists a batch of graded misses.
type WrongBookRecorder interface {
	BulkRecord(ctx context.Context, batch []repository.WrongAnswer, at time.Time) error
}

// WrongBookWorker drains the wrong-answer queue that submissions feed and
// upserts the tallies in batches. Queue items that fail to persist are pushed
// back for the next cycle.
type WrongBookWorker struct {
	recorder WrongBookRecorder
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewWrongBookWorker(recorder WrongBookRecorder, rdb *redis.Client, log zerolog.Logger) *WrongBookWorker {
	return &WrongBookWorker{
		recorder: recorder,
		rdb:      rdb,
		log:      log.With().Str("component", "wrong_book_worker").Logger(),
	}
}

type wrongAnswerPayload struct {
	UserID     int64  `json:"user_id"`
	PaperID    int64  `json:"paper_id"`
	QuestionID string `json:"question_id"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *WrongBookWorker) Start(ctx context.Context) {
	w.log.Info().Msg("WrongBookWorker started")

	batch := make([]repository.WrongAnswer, 0, WrongBookBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= WrongBookBatchSize || time.Since(lastFlush) >= WrongBookBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, WrongBookPollTimeout, config.WorkerKey.WrongAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p wrongAnswerPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, repository.WrongAnswer{
				UserID:     p.UserID,
				PaperID:    p.PaperID,
				QuestionID: p.QuestionID,
			})
		}
	}
}

// flushSafe persists a batch, requeueing every item if the write fails so no
// miss is silently dropped.
func (w *WrongBookWorker) flushSafe(ctx context.Context, batch []repository.WrongAnswer) {
	if len(batch) == 0 {
		return
	}

	if err := w.recorder.BulkRecord(ctx, batch, time.Now()); err != nil {
		w.log.Warn().Err(err).Int("items", len(batch)).Msg("Bulk wrong-book upsert failed, requeueing")
		for _, item := range batch {
			raw, _ := json.Marshal(wrongAnswerPayload{
				UserID:     item.UserID,
				PaperID:    item.PaperID,
				QuestionID: item.QuestionID,
			})
			w.rdb.RPush(ctx, config.WorkerKey.WrongAnswersQueue, raw)
		}
		return
	}

	w.log.Debug().Int("items", len(batch)).Msg("Wrong-book batch persisted")
}
