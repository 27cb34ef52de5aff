package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns queries that must return no rows however the actors
// interleave.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_tracking_number",
			SQL: `SELECT tracking_number, COUNT(*) FROM shipments
                  GROUP BY tracking_number HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_tracking_format",
			SQL:  `SELECT id, tracking_number FROM shipments WHERE tracking_number !~ '^ZIMSHIP-[0-9]{5}$'`,
		},
		{
			Name: "O3_single_default_address",
			SQL: `SELECT user_id, COUNT(*) FROM addresses WHERE is_default
                  GROUP BY user_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_one_notification_per_profile",
			SQL: `SELECT announcement_id, user_id, COUNT(*) FROM notifications
                  WHERE announcement_id IS NOT NULL
                  GROUP BY announcement_id, user_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_fanout_reaches_everyone",
			SQL: `SELECT n.announcement_id, COUNT(*) FROM notifications n
                  GROUP BY n.announcement_id
                  HAVING COUNT(*) <> (SELECT COUNT(*) FROM profiles)`,
		},
		{
			Name: "O6_mfa_secret_present",
			SQL:  `SELECT id FROM profiles WHERE mfa_enabled AND mfa_secret IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
