package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/storage"
)

var subscriberColumns = []string{
	"id", "email", "status", "confirmation_token", "unsubscribe_token",
	"confirmed_at", "unsubscribed_at", "source", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStoreWithDialector(postgres.New(postgres.Config{Conn: db}), Options{})
	require.NoError(t, err)
	return store, mock
}

func TestStoreReads(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("按邮箱查询", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT \* FROM "newsletter_subscribers" WHERE email = \$1`).
			WillReturnRows(sqlmock.NewRows(subscriberColumns).
				AddRow("id-1", "a@b.com", "pending", "ctok", "utok", nil, nil, "web-newsletter-form", created, created))

		sub, err := store.GetByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, "id-1", sub.ID)
		assert.Equal(t, domain.StatusPending, sub.Status)
		require.NotNil(t, sub.ConfirmationToken)
		assert.Equal(t, "ctok", *sub.ConfirmationToken)
		assert.Nil(t, sub.ConfirmedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("记录不存在映射为ErrSubscriberNotFound", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT \* FROM "newsletter_subscribers" WHERE confirmation_token = \$1 AND status = \$2`).
			WillReturnRows(sqlmock.NewRows(subscriberColumns))

		_, err := store.GetByConfirmationToken(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrSubscriberNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("数据库错误原样返回", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT \* FROM "newsletter_subscribers" WHERE unsubscribe_token = \$1`).
			WillReturnError(errors.New("connection reset"))

		_, err := store.GetByUnsubscribeToken(ctx, "u")
		assert.ErrorContains(t, err, "connection reset")
		assert.NotErrorIs(t, err, storage.ErrSubscriberNotFound)
	})

	t.Run("列出有效订阅者", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT \* FROM "newsletter_subscribers" WHERE status = \$1 AND unsubscribed_at IS NULL ORDER BY created_at ASC`).
			WithArgs("confirmed").
			WillReturnRows(sqlmock.NewRows(subscriberColumns).
				AddRow("id-1", "a@b.com", "confirmed", nil, "u1", created, nil, "web", created, created).
				AddRow("id-2", "c@d.com", "confirmed", nil, nil, created, nil, "web", created, created))

		subs, err := store.ListActiveConfirmed(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Nil(t, subs[1].UnsubscribeToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("按状态统计", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM "newsletter_subscribers" GROUP BY "status"`).
			WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
				AddRow("pending", 2).
				AddRow("confirmed", 5))

		stats, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Pending)
		assert.Equal(t, int64(5), stats.Confirmed)
		assert.Equal(t, int64(7), stats.Total)
	})

	t.Run("期刊不存在", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT \* FROM "newsletter_issues" WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "subject", "html", "preview_text", "sent_at", "created_at"}))

		_, err := store.GetNewsletter(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNewsletterNotFound)
	})
}

func TestStoreTransitions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	confirmSQL := `UPDATE "newsletter_subscribers" SET .* WHERE id = \$\d+ AND status = \$\d+ AND confirmation_token = \$\d+`
	unsubscribeSQL := `UPDATE "newsletter_subscribers" SET .* WHERE id = \$\d+ AND unsubscribe_token = \$\d+ AND status <> \$\d+`
	assignSQL := `UPDATE "newsletter_subscribers" SET .* WHERE id = \$\d+ AND status = \$\d+ AND unsubscribe_token IS NULL`

	t.Run("确认命中一行", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(confirmSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		sub := &domain.Subscriber{
			ID:                "id-1",
			Status:            domain.StatusPending,
			ConfirmationToken: domain.StringPtr("c1"),
			UnsubscribeToken:  domain.StringPtr("u1"),
			ConfirmedAt:       &now,
		}
		require.NoError(t, store.ConfirmPending(ctx, sub, "c1"))
		assert.Equal(t, domain.StatusConfirmed, sub.Status)
		assert.Nil(t, sub.ConfirmationToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("确认未命中映射为ErrStaleSubscriber", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(confirmSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		sub := &domain.Subscriber{ID: "id-1", Status: domain.StatusPending, ConfirmedAt: &now}
		err := store.ConfirmPending(ctx, sub, "c1")
		assert.ErrorIs(t, err, storage.ErrStaleSubscriber)
		assert.Equal(t, domain.StatusPending, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("退订条件包含令牌与状态", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(unsubscribeSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := store.MarkUnsubscribed(ctx, &domain.Subscriber{ID: "id-1", UnsubscribedAt: &now}, "u1")
		assert.ErrorIs(t, err, storage.ErrStaleSubscriber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("补写令牌要求令牌为空", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(assignSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.AssignUnsubscribeToken(ctx, "id-1", "u9"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("数据库错误原样返回", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(unsubscribeSQL).WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		err := store.MarkUnsubscribed(ctx, &domain.Subscriber{ID: "id-1"}, "u1")
		assert.ErrorContains(t, err, "deadlock detected")
		assert.NotErrorIs(t, err, storage.ErrStaleSubscriber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
