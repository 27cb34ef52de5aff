package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"zimship/address"
	"zimship/announcement"
	"zimship/mfa"
	"zimship/notify"
	"zimship/shipment"
	"zimship/ticket"
)

func TestRepositoriesAgainstPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	h := openHarness(t, ctx)
	pool := h.Pool()

	t.Run("duplicate tracking number maps to sentinel", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		repo := shipment.NewRepository(pool)
		svc := shipment.NewService(repo).WithTrackingGenerator(func() string { return "ZIMSHIP-00001" })

		first, err := svc.Create(ctx, shipment.CreateParams{Destination: "Harare"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := svc.Create(ctx, shipment.CreateParams{}); !errors.Is(err, shipment.ErrDuplicateTracking) {
			t.Fatalf("expected ErrDuplicateTracking, got %v", err)
		}
		got, err := svc.Track(ctx, "zimship-00001")
		if err != nil || got.ID != first.ID || got.Destination != "Harare" {
			t.Fatalf("track: %+v %v", got, err)
		}
		if _, err := svc.Cancel(ctx, first.ID, "test"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if _, err := svc.MarkPaid(ctx, first.ID); !errors.Is(err, shipment.ErrBadStatus) {
			t.Fatalf("expected ErrBadStatus paying a cancelled shipment, got %v", err)
		}
	})

	t.Run("staff move a shipment one step at a time", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		svc := shipment.NewService(shipment.NewRepository(pool)).
			WithTrackingGenerator(func() string { return "ZIMSHIP-00002" })
		if _, err := svc.Create(ctx, shipment.CreateParams{Destination: "Bulawayo"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := svc.Advance(ctx, "ZIMSHIP-00002", shipment.StatusInTransit); !errors.Is(err, shipment.ErrBadStatus) {
			t.Fatalf("expected ErrBadStatus skipping steps, got %v", err)
		}
		for _, st := range []shipment.Status{shipment.StatusPaid, shipment.StatusCollected} {
			if _, err := svc.Advance(ctx, "ZIMSHIP-00002", st); err != nil {
				t.Fatalf("advance to %s: %v", st, err)
			}
		}
		got, err := svc.Track(ctx, "ZIMSHIP-00002")
		if err != nil || got.Status != shipment.StatusCollected {
			t.Fatalf("track: %+v %v", got, err)
		}
		if _, err := svc.Advance(ctx, "ZIMSHIP-00002", shipment.StatusCancelled); !errors.Is(err, shipment.ErrBadStatus) {
			t.Fatalf("expected ErrBadStatus cancelling a collected shipment, got %v", err)
		}
	})

	t.Run("announcement fans out to every profile", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		ids := mustSeed(t, ctx, pool, 2)
		a, err := announcement.NewService(announcement.NewRepository(pool)).
			Publish(ctx, ids.adminID, announcement.CreateRequest{Title: "Depot closed", Body: "Closed on bank holiday Monday."})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}

		notes := notify.NewService(notify.NewRepository(pool))
		n, err := notes.Broadcast(ctx, a.ID)
		if err != nil {
			t.Fatalf("broadcast: %v", err)
		}
		if n != 3 {
			t.Fatalf("expected 3 notifications, got %d", n)
		}
		list, err := notes.ListForUser(ctx, ids.customers[0], 10)
		if err != nil || len(list) != 1 || list[0].Title != "Depot closed" {
			t.Fatalf("list: %+v %v", list, err)
		}
		again, err := notes.Broadcast(ctx, a.ID)
		if err != nil {
			t.Fatalf("re-send: %v", err)
		}
		if again != 0 {
			t.Fatalf("expected re-send to add nothing, got %d", again)
		}
		var rows int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE announcement_id = $1`, a.ID).Scan(&rows); err != nil {
			t.Fatalf("count notifications: %v", err)
		}
		if rows != 3 {
			t.Fatalf("expected 3 rows after re-send, got %d", rows)
		}
		if list, err = notes.ListForUser(ctx, ids.customers[0], 10); err != nil || len(list) != 1 {
			t.Fatalf("expected one notification per user after re-send: %+v %v", list, err)
		}
		if err := notes.MarkRead(ctx, ids.customers[1], list[0].ID); !errors.Is(err, notify.ErrNotFound) {
			t.Fatalf("expected ErrNotFound marking another user's notification, got %v", err)
		}
		if _, err := notes.Broadcast(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, notify.ErrAnnouncementNotFound) {
			t.Fatalf("expected ErrAnnouncementNotFound, got %v", err)
		}
	})

	t.Run("one default address per user", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		ids := mustSeed(t, ctx, pool, 1)
		svc := address.NewService(address.NewRepository(pool))
		for _, label := range []string{"home", "work"} {
			_, err := svc.Create(ctx, ids.customers[0], address.CreateRequest{
				Label: label, Line1: "1 High St", City: "London", Postcode: "sw1a 1aa",
				Country: address.CountryUK, IsDefault: true,
			})
			if err != nil {
				t.Fatalf("create %s: %v", label, err)
			}
		}
		list, err := svc.List(ctx, ids.customers[0])
		if err != nil || len(list) != 2 {
			t.Fatalf("list: %+v %v", list, err)
		}
		defaults := 0
		for _, a := range list {
			if a.IsDefault {
				defaults++
				if a.Label != "work" {
					t.Fatalf("expected latest address to be default, got %s", a.Label)
				}
			}
			if a.Postcode != "SW1A 1AA" {
				t.Fatalf("postcode not normalised: %q", a.Postcode)
			}
		}
		if defaults != 1 {
			t.Fatalf("expected one default, got %d", defaults)
		}
	})

	t.Run("ticket resolve is owner scoped", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		ids := mustSeed(t, ctx, pool, 2)
		svc := ticket.NewService(ticket.NewRepository(pool))
		tk, err := svc.Open(ctx, ids.customers[0], "", ticket.CreateRequest{Subject: "Late drum", Message: "Where is it?", CSRFToken: "x"})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := svc.Resolve(ctx, ids.customers[1], tk.ID, false); !errors.Is(err, ticket.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, err := svc.Resolve(ctx, ids.customers[0], tk.ID, false); err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if _, err := svc.Resolve(ctx, ids.adminID, tk.ID, true); !errors.Is(err, ticket.ErrBadStatus) {
			t.Fatalf("expected ErrBadStatus, got %v", err)
		}
	})

	t.Run("mfa enable writes audit row", func(t *testing.T) {
		if err := h.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		ids := mustSeed(t, ctx, pool, 1)
		repo := mfa.NewRepository(pool)
		if err := repo.Enable(ctx, ids.customers[0], "v1.ciphertext"); err != nil {
			t.Fatalf("enable: %v", err)
		}
		stored, err := repo.GetSecret(ctx, ids.customers[0])
		if err != nil || !stored.Enabled || stored.Ciphertext != "v1.ciphertext" {
			t.Fatalf("stored secret: %+v %v", stored, err)
		}
		var n int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE user_id = $1 AND action = $2`, ids.customers[0], mfa.AuditEnabled).Scan(&n); err != nil || n != 1 {
			t.Fatalf("audit rows: %d %v", n, err)
		}
		if err := repo.Enable(ctx, "00000000-0000-0000-0000-000000000000", "x"); !errors.Is(err, mfa.ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
	})
}
