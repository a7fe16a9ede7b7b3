package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"roomviz/internal/domain"
	"roomviz/internal/sqlinline"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "generated_images_selections_hash_key"}
}

func TestClaimWinsSlot(t *testing.T) {
	db := &stubSQL{}
	c := NewClaimer(db, 10*time.Minute, testLogger())

	res, err := c.Claim(context.Background(), ClaimInput{
		SelectionsHash: "abc123",
		SelectionsJSON: []byte(`{}`),
		OrgID:          "org-1",
		PhotoID:        "photo-1",
		SessionID:      "sess-1",
		Model:          "gpt-image-1.5",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Claimed || res.CachedPath != "" {
		t.Fatalf("result = %+v, want claimed", res)
	}

	sweeps := db.calls(sqlinline.QDeleteStalePending)
	if len(sweeps) != 1 {
		t.Fatalf("stale sweep ran %d times, want 1", len(sweeps))
	}
	cutoff, ok := sweeps[0].args[1].(time.Time)
	if !ok {
		t.Fatalf("sweep cutoff arg = %T", sweeps[0].args[1])
	}
	age := time.Since(cutoff)
	if age < 9*time.Minute || age > 11*time.Minute {
		t.Errorf("sweep cutoff %v old, want ~10m", age)
	}

	if inserts := db.calls(sqlinline.QInsertPendingEntry); len(inserts) != 1 {
		t.Fatalf("pending insert ran %d times, want 1", len(inserts))
	}
}

func TestClaimCollisionWithCompletedEntry(t *testing.T) {
	db := &stubSQL{
		execErr: map[string]error{sqlinline.QInsertPendingEntry: uniqueViolation()},
		rowFn: func(query string, args []any) scanFunc {
			if query != sqlinline.QSelectCompletedEntry {
				t.Fatalf("unexpected query row: %s", query)
			}
			return func(dest ...any) error {
				*(dest[0].(*string)) = "generated/org-1/abc123.png"
				return nil
			}
		},
	}
	c := NewClaimer(db, 10*time.Minute, testLogger())

	res, err := c.Claim(context.Background(), ClaimInput{SelectionsHash: "abc123"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Claimed {
		t.Fatal("lost race should not report claimed")
	}
	if res.CachedPath != "generated/org-1/abc123.png" {
		t.Fatalf("cached path = %q", res.CachedPath)
	}
}

func TestClaimCollisionWithLiveClaim(t *testing.T) {
	db := &stubSQL{
		execErr: map[string]error{sqlinline.QInsertPendingEntry: uniqueViolation()},
		rowFn: func(string, []any) scanFunc {
			return func(...any) error { return pgx.ErrNoRows }
		},
	}
	c := NewClaimer(db, 10*time.Minute, testLogger())

	_, err := c.Claim(context.Background(), ClaimInput{SelectionsHash: "abc123"})
	if !errors.Is(err, domain.ErrAlreadyInProgress) {
		t.Fatalf("err = %v, want ErrAlreadyInProgress", err)
	}
}

func TestClaimSurfacesUnexpectedErrors(t *testing.T) {
	boom := errors.New("connection reset")
	db := &stubSQL{execErr: map[string]error{sqlinline.QInsertPendingEntry: boom}}
	c := NewClaimer(db, 10*time.Minute, testLogger())

	_, err := c.Claim(context.Background(), ClaimInput{SelectionsHash: "abc123"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestReleaseDeletesPendingRow(t *testing.T) {
	db := &stubSQL{}
	c := NewClaimer(db, 10*time.Minute, testLogger())
	c.Release(context.Background(), "abc123")
	calls := db.calls(sqlinline.QReleasePendingEntry)
	if len(calls) != 1 || calls[0].args[0] != "abc123" {
		t.Fatalf("release calls = %+v", calls)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		scan     scanFunc
		want     domain.GenerationStatus
		wantPath string
		wantErr  bool
	}{
		{
			name: "no row",
			scan: func(...any) error { return pgx.ErrNoRows },
			want: domain.StatusNotFound,
		},
		{
			name: "pending sentinel",
			scan: func(dest ...any) error {
				*(dest[0].(*string)) = domain.PendingImagePath
				*(dest[1].(*time.Time)) = time.Now()
				return nil
			},
			want: domain.StatusPending,
		},
		{
			name: "complete",
			scan: func(dest ...any) error {
				*(dest[0].(*string)) = "generated/org/abc.png"
				*(dest[1].(*time.Time)) = time.Now()
				return nil
			},
			want:     domain.StatusComplete,
			wantPath: "generated/org/abc.png",
		},
		{
			name:    "backend error",
			scan:    func(...any) error { return errors.New("timeout") },
			want:    domain.StatusError,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &stubSQL{rowFn: func(string, []any) scanFunc { return tt.scan }}
			c := NewClaimer(db, 10*time.Minute, testLogger())
			status, path, err := c.Status(context.Background(), "abc123")
			if status != tt.want {
				t.Errorf("status = %s, want %s", status, tt.want)
			}
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPurgeCompletedLeavesPendingAlone(t *testing.T) {
	db := &stubSQL{}
	c := NewClaimer(db, 10*time.Minute, testLogger())
	if err := c.PurgeCompleted(context.Background(), "abc123"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if calls := db.calls(sqlinline.QDeleteCompletedEntry); len(calls) != 1 {
		t.Fatalf("purge calls = %+v", calls)
	}
	if calls := db.calls(sqlinline.QReleasePendingEntry); len(calls) != 0 {
		t.Fatal("purge must not touch pending rows")
	}
}
