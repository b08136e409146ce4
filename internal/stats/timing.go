package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-strftime"
)

const timestampLayout = "%Y-%m-%d %H:%M:%S"

// WriteTiming writes time.dat with the wall-clock start, end and duration
// of a run.
func WriteTiming(runDir string, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("run end %s precedes start %s", end, start)
	}
	body := fmt.Sprintf("Start_time %s\nEnd_time %s\nDuration %s\n",
		formatTimestamp(start),
		formatTimestamp(end),
		formatElapsed(end.Sub(start)),
	)
	return os.WriteFile(filepath.Join(runDir, timingFile), []byte(body), 0o644)
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s.%06d", strftime.Format(timestampLayout, t), t.Nanosecond()/1000)
}

// formatElapsed renders d as [D day(s), ]H:MM:SS.ffffff.
func formatElapsed(d time.Duration) string {
	micros := d.Microseconds()
	days := micros / (24 * 3600 * 1e6)
	micros -= days * 24 * 3600 * 1e6
	hours := micros / (3600 * 1e6)
	micros -= hours * 3600 * 1e6
	minutes := micros / (60 * 1e6)
	micros -= minutes * 60 * 1e6
	seconds := micros / 1e6
	micros -= seconds * 1e6

	clock := fmt.Sprintf("%d:%02d:%02d.%06d", hours, minutes, seconds, micros)
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}
