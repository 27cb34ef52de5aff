package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"zimship/shipment"
)

func TestTransientOnlyCoversDroppedConnections(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"admin shutdown", fmt.Errorf("shipment: insert: %w", &pgconn.PgError{Code: "57P01"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unexpected eof", fmt.Errorf("shipment: update status: %w", io.ErrUnexpectedEOF), true},
		{"network", &net.OpError{Op: "read", Err: errors.New("connection reset by peer")}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"check violation", fmt.Errorf("address: insert: %w", &pgconn.PgError{Code: "23514"}), false},
		{"service sentinel", fmt.Errorf("wrapped: %w", shipment.ErrInvalidTracking), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := transient(context.Background(), tc.err); got != tc.want {
			t.Fatalf("%s: transient = %v, want %v", tc.name, got, tc.want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !transient(ctx, errors.New("boom")) {
		t.Fatal("errors after the run ends should be transient")
	}
}
