package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/repository"
)

type recorderStub struct {
	mu      sync.Mutex
	batches [][]repository.WrongAnswer
	err     error
}

func (r *recorderStub) BulkRecord(ctx context.Context, batch []repository.WrongAnswer, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copied := make([]repository.WrongAnswer, len(batch))
	copy(copied, batch)
	r.batches = append(r.batches, copied)
	return nil
}

func (r *recorderStub) recorded() []repository.WrongAnswer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []repository.WrongAnswer
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func enqueue(t *testing.T, rdb *redis.Client, items ...repository.WrongAnswer) {
	t.Helper()
	for _, item := range items {
		raw, err := json.Marshal(wrongAnswerPayload{
			UserID:     item.UserID,
			PaperID:    item.PaperID,
			QuestionID: item.QuestionID,
		})
		require.NoError(t, err)
		require.NoError(t, rdb.RPush(context.Background(), config.WorkerKey.WrongAnswersQueue, raw).Err())
	}
}

func TestWrongBookWorkerDrainsQueue(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	recorder := &recorderStub{}
	w := NewWrongBookWorker(recorder, rdb, zerolog.Nop())

	want := []repository.WrongAnswer{
		{UserID: 1, PaperID: 7, QuestionID: "q1"},
		{UserID: 2, PaperID: 7, QuestionID: "q3"},
	}
	enqueue(t, rdb, want...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return rdb.LLen(context.Background(), config.WorkerKey.WrongAnswersQueue).Val() == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done

	// The shutdown flush persists whatever was still batched.
	require.ElementsMatch(t, want, recorder.recorded())
}

func TestWrongBookWorkerRequeuesOnPersistFailure(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	recorder := &recorderStub{err: context.DeadlineExceeded}
	w := NewWrongBookWorker(recorder, rdb, zerolog.Nop())

	item := repository.WrongAnswer{UserID: 1, PaperID: 7, QuestionID: "q1"}
	w.flushSafe(context.Background(), []repository.WrongAnswer{item})

	items, err := rdb.LRange(context.Background(), config.WorkerKey.WrongAnswersQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1)

	var p wrongAnswerPayload
	require.NoError(t, json.Unmarshal([]byte(items[0]), &p))
	require.Equal(t, "q1", p.QuestionID)
}

func TestWrongBookWorkerSkipsMalformedPayload(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	require.NoError(t, rdb.RPush(context.Background(), config.WorkerKey.WrongAnswersQueue, "not-json").Err())
	enqueue(t, rdb, repository.WrongAnswer{UserID: 1, PaperID: 7, QuestionID: "q1"})

	recorder := &recorderStub{}
	w := NewWrongBookWorker(recorder, rdb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return rdb.LLen(context.Background(), config.WorkerKey.WrongAnswersQueue).Val() == 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done

	require.Equal(t, []repository.WrongAnswer{{UserID: 1, PaperID: 7, QuestionID: "q1"}}, recorder.recorded())
}
