package generation

import (
	"context"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"roomviz/internal/infra"
)

// stubSQL scripts the SQLExecutor surface for tests: Exec calls are recorded
// and answered from execErr, QueryRow is answered by rowFn.
type stubSQL struct {
	mu      sync.Mutex
	execs   []execCall
	execErr map[string]error
	rowFn   func(query string, args []any) scanFunc
}

type execCall struct {
	query string
	args  []any
}

type scanFunc func(dest ...any) error

type stubRow struct {
	scan scanFunc
}

func (r stubRow) Scan(dest ...any) error {
	return r.scan(dest...)
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	s.execs = append(s.execs, execCall{query: query, args: args})
	s.mu.Unlock()
	if s.execErr != nil {
		if err, ok := s.execErr[query]; ok {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if s.rowFn == nil {
		return stubRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}
	return stubRow{scan: s.rowFn(query, args)}
}

func (s *stubSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubSQL) calls(query string) []execCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []execCall
	for _, c := range s.execs {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

func testLogger() infra.Logger {
	return zerolog.New(io.Discard)
}

var _ infra.SQLExecutor = (*stubSQL)(nil)
