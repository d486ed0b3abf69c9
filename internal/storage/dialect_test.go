package storage

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		d    Dialect
		in   string
		want string
	}{
		{DialectSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DialectPostgres, "DELETE FROM t", "DELETE FROM t"},
	}
	for i, tc := range cases {
		if got := tc.d.Rebind(tc.in); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true},
		{&pq.Error{Code: "23505"}, true},
		{&pq.Error{Code: "23503"}, false},
		{errors.New("disk full"), false},
	}
	for i, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}
