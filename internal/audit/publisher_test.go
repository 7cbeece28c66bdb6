package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscreen/pkg/domain"
	"chainscreen/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherRecordsToOutbox(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store, testLogger())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	payload := map[string]string{"case_id": "abc", "status": "new"}
	require.NoError(t, publisher.Record(ctx, KindCaseOpened, "abc", payload))

	events := store.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, KindCaseOpened, e.Kind)
	assert.Equal(t, "abc", e.Subject)
	assert.Equal(t, now, e.CreatedAt)
	assert.False(t, e.ID.IsNil())
	assert.Nil(t, e.PublishedAt)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(e.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store, testLogger())

	err := publisher.Record(context.Background(), KindCaseOpened, "abc", func() {})
	require.Error(t, err)
	assert.Empty(t, store.Events())
}

func TestInMemoryStoreOutboxLifecycle(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	var ids []domain.EventID
	for i := 0; i < 3; i++ {
		e := &Event{ID: domain.NewEventID(), Kind: KindDecisionRecorded, Subject: "addr"}
		require.NoError(t, store.Append(ctx, e))
		ids = append(ids, e.ID)
	}

	pending, err := store.Unpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Less(t, pending[0].Seq, pending[1].Seq, "outbox drains in append order")

	require.NoError(t, store.MarkPublished(ctx, []domain.EventID{pending[0].ID, pending[1].ID}))

	pending, err = store.Unpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)

	// Marking twice is harmless; the shipper retries after broker errors.
	require.NoError(t, store.MarkPublished(ctx, ids))
	pending, err = store.Unpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
