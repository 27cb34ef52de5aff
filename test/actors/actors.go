// Package actors runs the concurrent workloads of the stress test. Every
// actor loops until stop closes or ctx ends and only returns an error for
// failures the application should never produce.
package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"zimship/address"
	"zimship/announcement"
	"zimship/notify"
	"zimship/shipment"
)

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(min, spread int) {
	time.Sleep(time.Duration(min+rand.Intn(spread)) * time.Millisecond)
}

// transient reports errors caused by the chaos actor killing connections
// or by the run ending. Everything else, including any server error outside
// the connection and operator classes, is a real failure.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "57") || strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "40P01"
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Booker creates shipments with a tracking generator drawn from a tiny
// space, so collisions and redraws are routine. Exhausting every redraw is
// expected; any other failure is not.
func Booker(ctx context.Context, pool *pgxpool.Pool, userID string, space int, stop <-chan struct{}) error {
	svc := shipment.NewService(shipment.NewRepository(pool)).
		WithTrackingGenerator(func() string { return fmt.Sprintf("ZIMSHIP-%05d", rand.Intn(space)) })
	for !done(ctx, stop) {
		_, err := svc.Create(ctx, shipment.CreateParams{
			UserID:      &userID,
			Origin:      "London",
			Destination: "Harare",
			Data:        map[string]any{"drums": 1 + rand.Intn(4)},
		})
		switch {
		case err == nil, errors.Is(err, shipment.ErrDuplicateTracking):
		case transient(ctx, err):
		default:
			return fmt.Errorf("booker: %w", err)
		}
		pause(5, 15)
	}
	return nil
}

// Canceller cancels random pending or paid shipments of userID and marks
// others paid, racing the bookers.
func Canceller(ctx context.Context, pool *pgxpool.Pool, userID string, stop <-chan struct{}) error {
	svc := shipment.NewService(shipment.NewRepository(pool))
	for !done(ctx, stop) {
		list, err := svc.ListForUser(ctx, userID, 20)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if len(list) > 0 {
			s := list[rand.Intn(len(list))]
			if rand.Intn(2) == 0 {
				_, err = svc.Cancel(ctx, s.ID, "stress")
			} else {
				_, err = svc.MarkPaid(ctx, s.ID)
			}
			if err != nil && !errors.Is(err, shipment.ErrNotFound) && !errors.Is(err, shipment.ErrBadStatus) && !transient(ctx, err) {
				return fmt.Errorf("canceller: %w", err)
			}
		}
		pause(10, 30)
	}
	return nil
}

// AddressEditor keeps adding default addresses for userID so that
// concurrent editors fight over the single default.
func AddressEditor(ctx context.Context, pool *pgxpool.Pool, userID string, stop <-chan struct{}) error {
	svc := address.NewService(address.NewRepository(pool))
	for i := 0; !done(ctx, stop); i++ {
		_, err := svc.Create(ctx, userID, address.CreateRequest{
			Label:     fmt.Sprintf("home %d", i),
			Line1:     "12 Samora Machel Ave",
			City:      "Harare",
			Country:   "Zimbabwe",
			IsDefault: rand.Intn(3) != 0,
		})
		if err != nil && !transient(ctx, err) {
			return fmt.Errorf("address editor: %w", err)
		}
		pause(10, 20)
	}
	return nil
}

// Broadcaster publishes announcements and fans them out to every profile.
// Every third round re-sends the previous announcement, which must add no
// rows.
func Broadcaster(ctx context.Context, pool *pgxpool.Pool, adminID string, stop <-chan struct{}) error {
	anns := announcement.NewService(announcement.NewRepository(pool))
	notes := notify.NewService(notify.NewRepository(pool))
	var last string
	for i := 0; !done(ctx, stop); i++ {
		if last != "" && i%3 == 0 {
			n, err := notes.Broadcast(ctx, last)
			if err != nil && !transient(ctx, err) {
				return fmt.Errorf("broadcaster: re-send: %w", err)
			}
			if err == nil && n != 0 {
				return fmt.Errorf("broadcaster: re-send of %s added %d notifications", last, n)
			}
			pause(100, 100)
			continue
		}
		a, err := anns.Publish(ctx, adminID, announcement.CreateRequest{
			Title: fmt.Sprintf("Sailing %d", i),
			Body:  "Next container leaves Tilbury on Friday.",
		})
		if err == nil {
			_, err = notes.Broadcast(ctx, a.ID)
			if err == nil {
				last = a.ID
			}
		}
		if err != nil && !transient(ctx, err) {
			return fmt.Errorf("broadcaster: %w", err)
		}
		pause(100, 100)
	}
	return nil
}
