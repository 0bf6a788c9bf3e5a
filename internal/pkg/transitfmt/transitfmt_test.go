package transitfmt

import (
	"testing"
	"time"
)

func TestTitleCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"COMMUTER_RAIL", "Commuter Rail"},
		{"SUBWAY", "Subway"},
		{"bus", "Bus"},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAlmostTitleCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"IN_TRANSIT_TO", "In transit to"},
		{"STOPPED_AT", "Stopped at"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := AlmostTitleCase(tt.in); got != tt.want {
			t.Errorf("AlmostTitleCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDelayText(t *testing.T) {
	tests := []struct {
		delay     int
		wantText  string
		wantClass string
	}{
		{0, "on time", OnTime},
		{59, "on time", OnTime},
		{60, "1 minutes late", SlightDelay},
		{600, "10 minutes late", ModerateDelay},
		{1200, "20 minutes late", SevereDelay},
		{-30, "1 minutes early", OnTime},
		{-180, "3 minutes early", OnTime},
	}
	for _, tt := range tests {
		if got := DelayText(tt.delay); got != tt.wantText {
			t.Errorf("DelayText(%d) = %q, want %q", tt.delay, got, tt.wantText)
		}
		if got := DelayClass(tt.delay); got != tt.wantClass {
			t.Errorf("DelayClass(%d) = %q, want %q", tt.delay, got, tt.wantClass)
		}
	}
}

func TestOccupancyClass(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{95, SevereDelay},
		{80, SevereDelay},
		{60, ModerateDelay},
		{45, SlightDelay},
		{10, ""},
	}
	for _, tt := range tests {
		if got := OccupancyClass(tt.pct); got != tt.want {
			t.Errorf("OccupancyClass(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestPlatformName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Commuter Rail - Track 2 (Outbound)", "track 2"},
		{"Track 3 (Commuter Rail)", "track 3"},
		{"Commuter Rail-Track 1", "track 1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PlatformName(tt.in); got != tt.want {
			t.Errorf("PlatformName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirection(t *testing.T) {
	zero, one, two := 0.0, 1.0, 2.0
	if got := Direction(&zero); got != "Outbound" {
		t.Errorf("got %q", got)
	}
	if got := Direction(&one); got != "Inbound" {
		t.Errorf("got %q", got)
	}
	if got := Direction(&two); got != "null" {
		t.Errorf("got %q", got)
	}
	if got := Direction(nil); got != "null" {
		t.Errorf("got %q", got)
	}
}

func TestSpeed(t *testing.T) {
	v := 42.6
	if got := Speed(&v); got != "43 mph" {
		t.Errorf("Speed = %q", got)
	}
	if got := Speed(nil); got != "null mph" {
		t.Errorf("Speed(nil) = %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	if err := SetTimezone("America/New_York"); err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 1, 15, 17, 5, 0, 0, time.UTC).Unix() // 12:05 EST
	if got := FormatClock(ts); got != "12:05 pm" {
		t.Errorf("FormatClock = %q, want 12:05 pm", got)
	}
	if got := FormatFull(ts); got != "2024-01-15 12:05:00 pm" {
		t.Errorf("FormatFull = %q", got)
	}
	if got := FormatClock(0); got != "" {
		t.Errorf("FormatClock(0) = %q, want empty", got)
	}
}

func TestFormatServiceTime(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "12:00 am"},
		{6*3600 + 5*60, "06:05 am"},
		{17*3600 + 42*60 + 30, "05:42 pm"},
		{25 * 3600, "01:00 am"},
	}
	for _, tt := range tests {
		if got := FormatServiceTime(tt.secs); got != tt.want {
			t.Errorf("FormatServiceTime(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
