package textstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
	pkgpostgres "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/postgres"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(&pkgpostgres.Client{DB: db}, "sentences"), mock
}

func TestPostgresVerify(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT s.id, s.filename, s.text FROM "sentences" s WHERE s.text ~ $1 AND s.id = ANY($2) ORDER BY s.id LIMIT $3`)).
		WithArgs("ab+c", sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "text"}).
			AddRow(int64(2), "a.txt", "abbc").
			AddRow(int64(5), nil, "abc"))

	hits, err := store.Verify(context.Background(), []uint32{5, 2}, "ab+c", Filter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []Hit{{ID: 2, Filename: "a.txt", Text: "abbc"}, {ID: 5, Text: "abc"}}, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScanEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE s.text ~ $1 ORDER BY s.id`)).
		WithArgs("zz").
		WillReturnRows(sqlmock.NewRows([]string{"id", "filename", "text"}))

	hits, err := store.Scan(context.Background(), "zz", Filter{})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestPostgresInvalidRegex(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnError(&pq.Error{Code: invalidRegex, Message: "invalid regular expression: parentheses () not balanced"})

	_, err := store.Scan(context.Background(), "a(", Filter{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPattern)
	assert.False(t, errors.Is(err, apperrors.ErrStoreUnavailable))
}

func TestPostgresBackendFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	_, err := store.Scan(context.Background(), "abc", Filter{})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestPostgresPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	store := NewPostgres(&pkgpostgres.Client{DB: db}, "sentences")
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
