package segment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputguard/internal/eventlog"
	"inputguard/internal/keymanager"
)

type memStore struct {
	mu       sync.Mutex
	headers  [][]byte
	bodies   [][]byte
	counts   []int
	failNext bool
}

func (s *memStore) Append(tsUTCMs int64, header, body []byte, count int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return 0, assert.AnError
	}
	s.headers = append(s.headers, header)
	s.bodies = append(s.bodies, body)
	s.counts = append(s.counts, count)
	return int64(len(s.headers)), nil
}

func (s *memStore) segmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.headers)
}

func newTestSession(t *testing.T) keymanager.SessionKeys {
	t.Helper()
	dir := t.TempDir()
	store, err := keymanager.NewFileSecretStore(dir)
	require.NoError(t, err)
	km, err := keymanager.Load(store)
	require.NoError(t, err)
	sess, err := km.NewSession()
	require.NoError(t, err)
	return sess
}

func TestFlushProducesVerifiableSegment(t *testing.T) {
	store := &memStore{}
	sess := newTestSession(t)
	cfg := Config{MaxEvents: 3, FlushInterval: time.Hour}
	w := New(cfg, store, sess, nil)

	w.Enqueue(eventlog.NewKey(1.0, "a", eventlog.ActionDown, nil, nil))
	w.Enqueue(eventlog.NewKey(1.1, "a", eventlog.ActionUp, nil, nil))
	require.NoError(t, w.Flush())

	require.Equal(t, 1, store.segmentCount())
	h, err := ParseHeader(store.headers[0])
	require.NoError(t, err)
	assert.Equal(t, HeaderVersion, h.Ver)
	assert.Equal(t, sess.SessionID, h.Session)
	assert.Equal(t, "00000000000000000000000000000000000000000000000000000000000000"[:32], h.PrevTag)
	ok, err := h.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlushTriggersOnMaxEvents(t *testing.T) {
	store := &memStore{}
	sess := newTestSession(t)
	cfg := Config{MaxEvents: 2, FlushInterval: time.Hour}
	w := New(cfg, store, sess, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	w.Enqueue(eventlog.NewKey(1.0, "a", eventlog.ActionDown, nil, nil))
	w.Enqueue(eventlog.NewKey(1.1, "a", eventlog.ActionUp, nil, nil))

	require.Eventually(t, func() bool {
		return store.segmentCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestFlushChainsAcrossSegments(t *testing.T) {
	store := &memStore{}
	sess := newTestSession(t)
	cfg := Config{MaxEvents: 1, FlushInterval: time.Hour}
	w := New(cfg, store, sess, nil)

	w.Enqueue(eventlog.NewKey(1.0, "a", eventlog.ActionDown, nil, nil))
	require.NoError(t, w.maybeFlush(true))
	w.Enqueue(eventlog.NewKey(2.0, "b", eventlog.ActionDown, nil, nil))
	require.NoError(t, w.maybeFlush(true))

	require.Equal(t, 2, store.segmentCount())
	h1, err := ParseHeader(store.headers[0])
	require.NoError(t, err)
	h2, err := ParseHeader(store.headers[1])
	require.NoError(t, err)
	assert.NotEqual(t, h1.ChainTag, h2.ChainTag)
	assert.NotEqual(t, "", h2.PrevTag)
}

func TestStoreFailureLeavesRatchetUnchanged(t *testing.T) {
	store := &memStore{}
	sess := newTestSession(t)
	cfg := Config{MaxEvents: 1, FlushInterval: time.Hour}
	w := New(cfg, store, sess, nil)

	w.Enqueue(eventlog.NewKey(1.0, "a", eventlog.ActionDown, nil, nil))
	beforeKey := append([]byte(nil), w.currentKey...)
	store.failNext = true
	err := w.maybeFlush(true)
	require.Error(t, err)
	assert.Equal(t, 0, store.segmentCount())
	assert.Equal(t, beforeKey, w.currentKey)

	w.Enqueue(eventlog.NewKey(1.0, "a", eventlog.ActionDown, nil, nil))
	require.NoError(t, w.maybeFlush(true))
	assert.NotEqual(t, beforeKey, w.currentKey)
}

func TestEmptyBufferDoesNotFlush(t *testing.T) {
	store := &memStore{}
	sess := newTestSession(t)
	w := New(DefaultConfig(), store, sess, nil)
	require.NoError(t, w.maybeFlush(true))
	assert.Equal(t, 0, store.segmentCount())
}

func TestPadTo256RoundsUp(t *testing.T) {
	_, n := padTo256(make([]byte, 10))
	assert.Equal(t, 256, n)
	_, n = padTo256(make([]byte, 300))
	assert.Equal(t, 512, n)
	_, n = padTo256(nil)
	assert.Equal(t, 256, n)
}
