package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderrecon/pkg/db/dbtest"
	"github.com/angelmondragon/orderrecon/pkg/db/models"
	"github.com/angelmondragon/orderrecon/pkg/enums"
)

func newEvent() models.OutboxEvent {
	return models.OutboxEvent{
		EventType:     enums.EventOrderConfirmationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
}

func TestRepositoryFetchSkipsPublishedAndExhausted(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	pending := newEvent()
	require.NoError(t, repo.Insert(conn, pending))

	published := newEvent()
	now := time.Now().UTC()
	published.PublishedAt = &now
	require.NoError(t, repo.Insert(conn, published))

	exhausted := newEvent()
	exhausted.AttemptCount = 5
	require.NoError(t, repo.Insert(conn, exhausted))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pending.AggregateID, rows[0].AggregateID)
}

func TestRepositoryMarkLifecycle(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	require.NoError(t, repo.Insert(conn, newEvent()))
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	require.NoError(t, repo.MarkFailedTx(conn, id, errors.New(strings.Repeat("x", 2000))))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	require.Len(t, *row.LastError, maxLastErrorLen)

	require.NoError(t, repo.MarkTerminalTx(conn, id, errors.New("boom"), 10))
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.Equal(t, 10, row.AttemptCount)

	require.NoError(t, repo.MarkPublishedTx(conn, id))
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.NotNil(t, row.PublishedAt)

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(conn)

	old := time.Now().UTC().Add(-48 * time.Hour)
	publishedAt := old.Add(time.Minute)

	oldPublished := newEvent()
	oldPublished.CreatedAt = old
	oldPublished.PublishedAt = &publishedAt
	require.NoError(t, repo.Insert(conn, oldPublished))

	oldDead := newEvent()
	oldDead.CreatedAt = old
	oldDead.AttemptCount = 10
	require.NoError(t, repo.Insert(conn, oldDead))

	oldPending := newEvent()
	oldPending.CreatedAt = old
	require.NoError(t, repo.Insert(conn, oldPending))

	fresh := newEvent()
	require.NoError(t, repo.Insert(conn, fresh))

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestRepositoryRequiresTransaction(t *testing.T) {
	repo := NewRepository(nil)
	require.Error(t, repo.Insert(nil, newEvent()))
	_, err := repo.FetchUnpublishedForPublish(nil, 1, 1)
	require.Error(t, err)
}

func TestDLQRepositoryInsertAndFind(t *testing.T) {
	conn := dbtest.Open(t, &models.OutboxDLQ{})
	repo := NewDLQRepository(conn)

	eventID := uuid.New()
	msg := strings.Repeat("e", 1500)
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventInvoiceEmailRequested,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))

	found, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, *found.ErrorMessage, maxLastErrorLen)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}
