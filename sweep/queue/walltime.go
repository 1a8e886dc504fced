package queue

import (
	"fmt"
	"time"
)

// FormatDHHMMSS formats d as "D-HH:MM:SS", rounding up to whole seconds.
// This is the SLURM --time format.
func FormatDHHMMSS(d time.Duration) string {
	s := ceilSeconds(d)
	days := s / 86400
	s %= 86400
	return fmt.Sprintf("%d-%02d:%02d:%02d", days, s/3600, s%3600/60, s%60)
}

// FormatHHMM formats d as "HH:MM", rounding up to whole minutes. Hours are
// not wrapped into days. This is the LSF -W format.
func FormatHHMM(d time.Duration) string {
	m := (ceilSeconds(d) + 59) / 60
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
