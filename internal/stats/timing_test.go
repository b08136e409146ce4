package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteTiming(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 9, 5, 7, 250000000, time.UTC)
	end := start.Add(2*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Microsecond)
	if err := WriteTiming(dir, start, end); err != nil {
		t.Fatalf("write timing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "time.dat"))
	if err != nil {
		t.Fatalf("read timing: %v", err)
	}
	want := "Start_time 2024-03-01 09:05:07.250000\n" +
		"End_time 2024-03-01 11:08:11.250500\n" +
		"Duration 2:03:04.000500\n"
	if string(data) != want {
		t.Fatalf("unexpected time.dat:\n got=%q\nwant=%q", string(data), want)
	}
}

func TestWriteTimingRejectsReversedInterval(t *testing.T) {
	start := time.Now()
	if err := WriteTiming(t.TempDir(), start, start.Add(-time.Second)); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                             "0:00:00.000000",
		1500 * time.Millisecond:       "0:00:01.500000",
		25 * time.Hour:                "1 day, 1:00:00.000000",
		49*time.Hour + 61*time.Second: "2 days, 1:01:01.000000",
	}
	for d, want := range cases {
		if got := formatElapsed(d); got != want {
			t.Fatalf("formatElapsed(%v): got=%q want=%q", d, got, want)
		}
	}
}
