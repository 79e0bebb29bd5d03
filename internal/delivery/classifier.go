package delivery

import "github.com/tinywideclouds/go-push-delivery/pkg/push"

// Classification is the partition of one dispatch's per-token results.
// Invariant: Successes + len(Permanent) + len(Transient) == len(results).
type Classification struct {
	// Permanent holds token values the gateway declared dead; these must be
	// pruned from the registry.
	Permanent []string
	// Transient holds token values that failed for a recoverable reason;
	// these must never be pruned.
	Transient []string
	Successes int
}

// Classify partitions gateway results into successes, retry-eligible failures
// and dead tokens. Pure: no I/O, no side effects.
func Classify(results []push.TokenResult) Classification {
	var c Classification
	for _, res := range results {
		switch res.Status {
		case push.StatusSuccess:
			c.Successes++
		case push.StatusPermanentFailure:
			c.Permanent = append(c.Permanent, res.Token)
		default:
			c.Transient = append(c.Transient, res.Token)
		}
	}
	return c
}
