package cron

import "testing"

func FuzzParseSchedule(f *testing.F) {
	for _, seed := range []string{"*/5 * * * *", "@every 30s", "@hourly", "0 25 * * *", "invalid", ""} {
		f.Add(seed)
	}
	f.Fuzz(func(_ *testing.T, expr string) {
		_ = ParseSchedule(expr)
	})
}
