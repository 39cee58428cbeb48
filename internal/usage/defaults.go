package usage

import "time"

// PeriodLength is the rolling window after which a user's processing
// quota resets.
const PeriodLength = 7 * 24 * time.Hour

func defaultUsage() Usage {
	return Usage{
		Plan:     "Starter",
		Limit:    10,
		Used:     0,
		ResetsAt: time.Now().UTC().Add(PeriodLength),
	}
}
