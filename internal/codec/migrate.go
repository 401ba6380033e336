package codec

import "time"

// A migration upgrades a transaction row written by one schema
// version to the next. Migrations run in order from the payload's
// version; versions at or beyond SchemaVersion apply none.
type migration struct {
	from string
	to   string
	up   func(w *wireTransaction, now time.Time)
}

var migrations = []migration{
	{
		from: "1.0",
		to:   "1.1",
		up: func(w *wireTransaction, _ time.Time) {
			if w.IsVerified == nil {
				verified := false
				w.IsVerified = &verified
			}
			// confidence and reasoning were introduced in 1.1 and
			// stay absent; subcategory defaults to empty.
		},
	},
	{
		from: "1.1",
		to:   "1.2",
		up: func(w *wireTransaction, now time.Time) {
			if w.AddedDate == "" {
				w.AddedDate = now.UTC().Format(time.RFC3339)
			}
			if w.LastModifiedDate == "" {
				w.LastModifiedDate = now.UTC().Format(time.RFC3339)
			}
		},
	},
}

func applyMigrations(w *wireTransaction, version string, now time.Time) {
	active := false
	for _, m := range migrations {
		if m.from == version {
			active = true
		}
		if active {
			m.up(w, now)
			version = m.to
		}
	}
}
