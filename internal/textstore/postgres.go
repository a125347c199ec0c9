package textstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
	pkgpostgres "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/postgres"
)

// Postgres evaluates patterns with the server-side ~ operator on a table of
// (id, filename, lang, text, text_without_sep) rows.
type Postgres struct {
	client *pkgpostgres.Client
	table  string
	logger *slog.Logger
}

// NewPostgres reads records from table through client.
func NewPostgres(client *pkgpostgres.Client, table string) *Postgres {
	return &Postgres{
		client: client,
		table:  table,
		logger: slog.Default().With("component", "postgres-textstore"),
	}
}

// Verify evaluates pattern against the rows in ids.
func (p *Postgres) Verify(ctx context.Context, ids []uint32, pattern string, filter Filter) ([]Hit, error) {
	query, args := buildQuery(p.table, ids, pattern, filter)
	return p.run(ctx, query, args)
}

// Scan evaluates pattern against the whole table.
func (p *Postgres) Scan(ctx context.Context, pattern string, filter Filter) ([]Hit, error) {
	query, args := buildQuery(p.table, nil, pattern, filter)
	return p.run(ctx, query, args)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Postgres) run(ctx context.Context, query string, args []any) ([]Hit, error) {
	rows, err := p.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(ctx, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var h Hit
		var filename sql.NullString
		if err := rows.Scan(&h.ID, &filename, &h.Text); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		h.Filename = filename.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, err)
	}
	return hits, nil
}

// invalidRegex is the SQLSTATE for a malformed ~ operand.
const invalidRegex = "2201B"

func queryError(ctx context.Context, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidRegex {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidPattern, pqErr.Message)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("querying records: %w", ctxErr)
	}
	return fmt.Errorf("querying records: %w: %w", apperrors.ErrStoreUnavailable, err)
}

// buildQuery renders the record query. A nil ids slice scans every row.
func buildQuery(table string, ids []uint32, pattern string, filter Filter) (string, []any) {
	field := "s.text"
	if filter.Mode == posting.ModeWithoutSeparator {
		field = "s.text_without_sep"
	}

	var b strings.Builder
	args := make([]any, 0, 4)
	fmt.Fprintf(&b, "SELECT s.id, s.filename, s.text FROM %s s WHERE ", pq.QuoteIdentifier(table))

	args = append(args, pattern)
	fmt.Fprintf(&b, "%s ~ $%d", field, len(args))

	if ids != nil {
		wide := make([]int64, len(ids))
		for i, id := range ids {
			wide[i] = int64(id)
		}
		args = append(args, pq.Array(wide))
		fmt.Fprintf(&b, " AND s.id = ANY($%d)", len(args))
	}
	if filter.Document != "" {
		args = append(args, "%"+filter.Document+"%")
		fmt.Fprintf(&b, " AND s.filename LIKE $%d", len(args))
	}
	if filter.ExcludeModern {
		b.WriteString(" AND (s.lang IS NULL OR (s.lang NOT IN ('mod', 'modern translation', 'pho') AND s.lang NOT LIKE '%역'))")
	}
	b.WriteString(" ORDER BY s.id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
