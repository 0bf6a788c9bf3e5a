// Package transitfmt formats transit data for display in map popups.
package transitfmt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Layouts used by the popups.
const (
	ClockLayout     = "03:04 pm"
	TimestampLayout = "2006-01-02 03:04:05 pm"
)

// DefaultTimezone is the zone timestamps are shown in.
const DefaultTimezone = "America/New_York"

// Delay classes, also used as CSS classes.
const (
	OnTime        = "on-time"
	SlightDelay   = "slight-delay"
	ModerateDelay = "moderate-delay"
	SevereDelay   = "severe-delay"
)

var location atomic.Pointer[time.Location]

func init() {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	location.Store(loc)
}

// SetTimezone changes the zone used by FormatTimestamp and FormatClock.
func SetTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	location.Store(loc)
	return nil
}

// Location returns the display zone.
func Location() *time.Location {
	return location.Load()
}

// FormatServiceTime formats seconds after midnight of a service day as
// "03:04 pm". Times past 24:00 wrap.
func FormatServiceTime(secs int) string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(secs) * time.Second).Format(ClockLayout)
}

// FormatTimestamp formats unix seconds with layout in the display zone.
// Zero formats as an empty string.
func FormatTimestamp(unix int64, layout string) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).In(location.Load()).Format(layout)
}

// FormatClock formats unix seconds as "03:04 pm".
func FormatClock(unix int64) string {
	return FormatTimestamp(unix, ClockLayout)
}

// FormatFull formats unix seconds with the date and seconds.
func FormatFull(unix int64) string {
	return FormatTimestamp(unix, TimestampLayout)
}

var titler = cases.Title(language.English)

// TitleCase turns a selector like COMMUTER_RAIL into "Commuter Rail".
func TitleCase(s string) string {
	return titler.String(strings.ReplaceAll(s, "_", " "))
}

var lower = cases.Lower(language.English)

// AlmostTitleCase turns IN_TRANSIT_TO into "In transit to".
func AlmostTitleCase(s string) string {
	s = lower.String(strings.ReplaceAll(s, "_", " "))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// DelayClass grades a delay given in seconds.
func DelayClass(delaySeconds int) string {
	switch {
	case delaySeconds >= 900:
		return SevereDelay
	case delaySeconds >= 600:
		return ModerateDelay
	case delaySeconds >= 60:
		return SlightDelay
	default:
		return OnTime
	}
}

// DelayMinutes floors a delay in seconds to whole minutes.
func DelayMinutes(delaySeconds int) int {
	return int(math.Floor(float64(delaySeconds) / 60))
}

// DelayText describes a delay: "3 minutes late", "on time" or
// "2 minutes early".
func DelayText(delaySeconds int) string {
	minutes := DelayMinutes(delaySeconds)
	switch {
	case DelayClass(delaySeconds) != OnTime:
		return strconv.Itoa(minutes) + " minutes late"
	case minutes == 0:
		return "on time"
	default:
		if minutes < 0 {
			minutes = -minutes
		}
		return strconv.Itoa(minutes) + " minutes early"
	}
}

// OccupancyClass grades an occupancy percentage.
func OccupancyClass(pct float64) string {
	switch {
	case pct >= 80:
		return SevereDelay
	case pct >= 60:
		return ModerateDelay
	case pct >= 40:
		return SlightDelay
	default:
		return ""
	}
}

// Direction names a GTFS direction_id. Unknown ids read "null".
func Direction(directionID *float64) string {
	if directionID == nil {
		return "null"
	}
	switch *directionID {
	case 0:
		return "Outbound"
	case 1:
		return "Inbound"
	}
	return "null"
}

var parenthesised = regexp.MustCompile(` *\([^)]*\) *`)

// PlatformName shortens a commuter rail platform name, e.g.
// "Commuter Rail - Track 2 (Outbound)" becomes "track 2".
func PlatformName(name string) string {
	s := strings.ToLower(name)
	s = parenthesised.ReplaceAllString(s, "")
	s = strings.Replace(s, "commuter rail", "", 1)
	s = strings.Replace(s, "-", "", 1)
	return strings.TrimSpace(s)
}

// Speed formats a speed in mph, rounding half away from zero. Unknown
// speeds read "null mph".
func Speed(mph *float64) string {
	if mph == nil {
		return "null mph"
	}
	return strconv.FormatFloat(math.Round(*mph), 'f', -1, 64) + " mph"
}
