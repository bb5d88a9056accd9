package engine

import (
	"context"
	"fmt"
	"time"
)

// ScanResult lists the competitions a batch should process.
type ScanResult struct {
	// Ended holds competitions in status active or ending whose deadline has
	// passed.
	Ended []string
	// EndingSoon holds active, unmarked competitions whose deadline falls in
	// (now, now+window].
	EndingSoon []string
}

// Scan finds competitions to resolve and to mark as ending soon. It does not
// mutate anything; each item is re-validated when processed.
func (e *Engine) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	due, err := e.competitions.ListDue(ctx, now)
	if err != nil {
		return ScanResult{}, fmt.Errorf("engine: scan due: %w", err)
	}
	soon, err := e.competitions.ListEndingSoon(ctx, now, now.Add(e.endingSoonWindow))
	if err != nil {
		return ScanResult{}, fmt.Errorf("engine: scan ending soon: %w", err)
	}

	res := ScanResult{
		Ended:      make([]string, 0, len(due)),
		EndingSoon: make([]string, 0, len(soon)),
	}
	for _, c := range due {
		res.Ended = append(res.Ended, c.ID)
	}
	for _, c := range soon {
		res.EndingSoon = append(res.EndingSoon, c.ID)
	}
	return res, nil
}
