package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

const upsertSQL = "INSERT INTO articles (url, headline, section) VALUES ($1, $2, $3) ON CONFLICT (url) DO NOTHING"

func newMockStore(t *testing.T, columns []string) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewPostgresWithPool(mock, columns)
	require.NoError(t, err)
	return s, mock
}

func TestUpsertInsertsNewURL(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, []string{"url", "headline", "section"})
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("https://eldeber.com.bo/economia/nota_1", "Titular", "economia").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := s.Upsert(context.Background(), "articles", pipeline.Article{
		URL:      "https://eldeber.com.bo/economia/nota_1",
		Headline: "Titular",
		Section:  "economia",
	})
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSkipsExistingURL(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, []string{"url", "headline", "section"})
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("https://eldeber.com.bo/economia/nota_1", "Titular", "economia").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.Upsert(context.Background(), "articles", pipeline.Article{
		URL:      "https://eldeber.com.bo/economia/nota_1",
		Headline: "Titular",
		Section:  "economia",
	})
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNullsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, []string{"url", "headline", "author", "published_at"})
	mock.ExpectExec("INSERT INTO articles").
		WithArgs("https://eldeber.com.bo/a/b", "Titular", nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := s.Upsert(context.Background(), "articles", pipeline.Article{
		URL:      "https://eldeber.com.bo/a/b",
		Headline: "Titular",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertWrapsUnavailable(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, []string{"url", "headline", "section"})
	mock.ExpectExec("INSERT INTO articles").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Upsert(context.Background(), "articles", pipeline.Article{URL: "https://x.test/a"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUpsertKeepsRecordLevelErrorsNonFatal(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, []string{"url", "headline", "section"})
	mock.ExpectExec("INSERT INTO articles").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{
			Code:    "23502",
			Message: `null value in column "headline" violates not-null constraint`,
		})

	_, err := s.Upsert(context.Background(), "articles", pipeline.Article{URL: "https://x.test/a"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestUpsertRejectsBadInput(t *testing.T) {
	t.Parallel()

	s, _ := newMockStore(t, nil)

	_, err := s.Upsert(context.Background(), "articles; DROP TABLE articles", pipeline.Article{URL: "https://x.test/a"})
	require.Error(t, err)

	_, err = s.Upsert(context.Background(), "articles", pipeline.Article{})
	require.Error(t, err)
}

func TestListExistingURLs(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT url FROM articles")).
		WillReturnRows(pgxmock.NewRows([]string{"url"}).
			AddRow("https://eldeber.com.bo/economia/nota_1").
			AddRow("https://eldeber.com.bo/pais/nota_2"))

	existing, err := s.ListExistingURLs(context.Background(), "articles")
	require.NoError(t, err)
	require.Len(t, existing, 2)
	require.Contains(t, existing, "https://eldeber.com.bo/economia/nota_1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListExistingURLsWrapsUnavailable(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, nil)
	mock.ExpectQuery("SELECT url FROM articles").
		WillReturnError(errors.New("connection refused"))

	_, err := s.ListExistingURLs(context.Background(), "articles")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestListExistingURLsRejectsBadTable(t *testing.T) {
	t.Parallel()

	s, _ := newMockStore(t, nil)
	_, err := s.ListExistingURLs(context.Background(), "articles where 1=1")
	require.Error(t, err)
}

func TestNormalizeColumns(t *testing.T) {
	t.Parallel()

	cols, err := normalizeColumns(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultColumns(), cols)

	_, err = normalizeColumns([]string{"url", "headline; --"})
	require.Error(t, err)

	_, err = normalizeColumns([]string{"url", "not_a_field"})
	require.Error(t, err)

	_, err = normalizeColumns([]string{"headline", "section"})
	require.Error(t, err)
}

func TestMemoryStoreUpsert(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	art := pipeline.Article{URL: "https://x.test/a", Headline: "A", SnapshotDate: time.Now()}

	inserted, err := m.Upsert(context.Background(), "articles", art)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = m.Upsert(context.Background(), "articles", art)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, 1, m.Count("articles"))

	existing, err := m.ListExistingURLs(context.Background(), "articles")
	require.NoError(t, err)
	require.Contains(t, existing, "https://x.test/a")
}
