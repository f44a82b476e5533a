package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

type memOutbox struct {
	mu      sync.Mutex
	records []model.PendingMutationRecord
	pruned  int
}

func (m *memOutbox) ListPending() ([]model.PendingMutationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []model.PendingMutationRecord
	for _, rec := range m.records {
		if rec.Status == model.MutationPending {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (m *memOutbox) MarkMutation(id string, status model.MutationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Status = status
			return nil
		}
	}
	return errors.New("record not found")
}

func (m *memOutbox) PruneCacheOlderThan(time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 2, nil
}

func (m *memOutbox) statuses() []model.MutationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.MutationStatus, len(m.records))
	for i, rec := range m.records {
		out[i] = rec.Status
	}
	return out
}

// scriptedRemote replays operations, failing those listed in fail. It
// records the order in which operations arrive.
type scriptedRemote struct {
	mu    sync.Mutex
	fail  map[string]bool
	seen  []string
	block chan struct{}
}

func (r *scriptedRemote) Execute(ctx context.Context, text string, vars []byte) ([]byte, error) {
	r.mu.Lock()
	r.seen = append(r.seen, text)
	blocked := r.block
	r.mu.Unlock()
	if blocked != nil {
		select {
		case <-blocked:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.fail[text] {
		return nil, errors.New("replay rejected")
	}
	return []byte(`{}`), nil
}

func outboxWith(ops ...string) *memOutbox {
	m := &memOutbox{}
	base := time.Now().UTC()
	for i, op := range ops {
		m.records = append(m.records, model.PendingMutationRecord{
			ID:            op,
			OperationText: op,
			EnqueuedAt:    base.Add(time.Duration(i) * time.Second),
			Status:        model.MutationPending,
		})
	}
	return m
}

func newTestEngine(t *testing.T, outbox Outbox, remote *scriptedRemote, policy FailurePolicy) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	e, err := New(Config{Outbox: outbox, Remote: remote, Policy: policy, Logger: logger})
	require.NoError(t, err)
	return e
}

func TestReplayIsFIFO(t *testing.T) {
	outbox := outboxWith("m1", "m2", "m3", "m4")
	remote := &scriptedRemote{}
	e := newTestEngine(t, outbox, remote, nil)

	res, err := e.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Synced)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, remote.seen)
}

func TestPartialFailureIsolation(t *testing.T) {
	outbox := outboxWith("m1", "m2", "m3")
	remote := &scriptedRemote{fail: map[string]bool{"m2": true}}
	e := newTestEngine(t, outbox, remote, nil)

	res, err := e.RunSync(context.Background())
	require.NoError(t, err)

	// All three were attempted, in order; the failure did not abort the batch.
	assert.Equal(t, []string{"m1", "m2", "m3"}, remote.seen)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []model.MutationStatus{
		model.MutationSynced,
		model.MutationFailed,
		model.MutationSynced,
	}, outbox.statuses())
}

func TestFailedRecordsAreNotReprocessed(t *testing.T) {
	outbox := outboxWith("m1")
	remote := &scriptedRemote{fail: map[string]bool{"m1": true}}
	e := newTestEngine(t, outbox, remote, nil)

	_, err := e.RunSync(context.Background())
	require.NoError(t, err)
	_, err = e.RunSync(context.Background())
	require.NoError(t, err)

	// Default policy retains the failed record; only the first run attempts it.
	assert.Equal(t, []string{"m1"}, remote.seen)
	assert.Equal(t, []model.MutationStatus{model.MutationFailed}, outbox.statuses())
}

func TestRetryOnNextSyncPolicy(t *testing.T) {
	outbox := outboxWith("m1")
	remote := &scriptedRemote{fail: map[string]bool{"m1": true}}
	e := newTestEngine(t, outbox, remote, RetryOnNextSync{})

	_, err := e.RunSync(context.Background())
	require.NoError(t, err)
	_, err = e.RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m1"}, remote.seen)
	assert.Equal(t, []model.MutationStatus{model.MutationPending}, outbox.statuses())
}

func TestOverlappingTriggerIsDropped(t *testing.T) {
	outbox := outboxWith("m1")
	remote := &scriptedRemote{block: make(chan struct{})}
	e := newTestEngine(t, outbox, remote, nil)

	done := make(chan Result, 1)
	go func() {
		res, _ := e.RunSync(context.Background())
		done <- res
	}()

	// Wait for the first run to enter the executor.
	require.Eventually(t, e.Syncing, time.Second, time.Millisecond)

	res, err := e.RunSync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Attempted)

	close(remote.block)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Synced)
}

func TestMaintenancePruneRunsAfterBatch(t *testing.T) {
	outbox := outboxWith()
	remote := &scriptedRemote{}
	e := newTestEngine(t, outbox, remote, nil)

	res, err := e.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outbox.pruned)
	assert.Equal(t, 2, res.Pruned)
}
