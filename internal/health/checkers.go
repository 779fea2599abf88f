package health

import (
	"context"
	"fmt"

	"github.com/hikaline/kanade/pkg/provider/tts"
)

// Pinger is anything with a Ping method, such as a pgx connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TTSChecker probes the synthesis engine by listing its speakers.
func TTSChecker(p tts.Provider) Checker {
	return Checker{
		Name: "tts",
		Check: func(ctx context.Context) error {
			if _, err := p.ListSpeakers(ctx); err != nil {
				return fmt.Errorf("listing speakers: %w", err)
			}
			return nil
		},
	}
}

// StoreChecker probes the settings database.
func StoreChecker(db Pinger) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return fmt.Errorf("pinging store: %w", err)
			}
			return nil
		},
	}
}
