package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	allocRetries      = 3
	allocInitialDelay = 50 * time.Millisecond
)

// SequenceRepo issues per-date order sequences from the sequence_counters
// table. The increment is a single upsert statement, so concurrent callers
// for the same date serialize on that one row and never on the whole table.
// Unrelated dates never contend.
type SequenceRepo struct {
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

var _ SequenceAllocator = (*SequenceRepo)(nil)

// NextSequence returns the next integer for the date, retrying transient
// store failures with exponential backoff before giving up with
// ErrAllocation. Values past the four-digit cap fail with
// ErrSequenceExhausted instead of wrapping.
func (r *SequenceRepo) NextSequence(ctx context.Context, date time.Time) (int, error) {
	day := date.Format("2006-01-02")
	delay := allocInitialDelay

	var lastErr error
	for attempt := 1; attempt <= allocRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("%w: %v", ErrAllocation, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		var next int
		err := r.DB.QueryRow(ctx, `
			INSERT INTO sequence_counters(seq_date, last_value) VALUES ($1, 1)
			ON CONFLICT (seq_date) DO UPDATE SET last_value = sequence_counters.last_value + 1
			RETURNING last_value`, day,
		).Scan(&next)
		if err != nil {
			lastErr = err
			r.Log.Warn().Err(err).Str("date", day).Int("attempt", attempt).
				Msg("sequence increment failed")
			continue
		}
		if next > MaxSequencePerDate {
			return 0, ErrSequenceExhausted
		}
		return next, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrAllocation, lastErr)
}
