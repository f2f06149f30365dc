package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"breakwatch/internal/model"
)

// ErrMalformedEvent wraps per-record parse failures. Callers drop the
// record and keep going; the batch never aborts on one bad event.
var ErrMalformedEvent = errors.New("malformed event")

// ParseDirection maps the vendor's direction vocabulary onto the
// canonical in/out classification. Unrecognized non-empty values pass
// through lowercased so downstream code can still display them.
func ParseDirection(raw string) (model.Direction, string) {
	n := strings.ToLower(strings.TrimSpace(raw))
	switch n {
	case "in", "entry", "entrance":
		return model.DirectionIn, "In"
	case "out", "exit", "egress":
		return model.DirectionOut, "Out"
	case "":
		return model.DirectionUnknown, "Unknown"
	}
	return model.Direction(n), TitleWords(n)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
}

// ParseTimestamp reads a vendor timestamp as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrMalformedEvent)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unsupported timestamp format %q", ErrMalformedEvent, value)
}

// Normalize maps one raw vendor event into the canonical shape, zoned
// to the door's location. Missing identity fields fall back to the
// "unknown" sentinels, missing site names to the door's site.
func Normalize(raw model.RawEvent, loc *time.Location, door model.Door) (model.NormalizedEvent, error) {
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return model.NormalizedEvent{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	direction, label := ParseDirection(raw.Info.Direction)

	userID := strings.TrimSpace(raw.Info.UserID)
	if userID == "" {
		userID = "unknown"
	}
	userName := strings.TrimSpace(raw.Info.UserName)
	if userName == "" {
		userName = "Unknown User"
	}
	siteName := strings.TrimSpace(raw.Info.SiteName)
	if siteName == "" {
		siteName = door.SiteName
	}
	if siteName == "" {
		siteName = "Unknown Site"
	}
	doorName := strings.TrimSpace(raw.Info.Door.Name)
	if doorName == "" {
		doorName = door.Name
	}

	return model.NormalizedEvent{
		EventID:          raw.ID,
		EventType:        strings.TrimSpace(raw.Type),
		ViolationMessage: strings.TrimSpace(raw.Info.Message),
		Timestamp:        ts.In(loc),
		UserID:           userID,
		UserName:         userName,
		SiteName:         siteName,
		Direction:        direction,
		DirectionLabel:   label,
		DoorID:           raw.DoorID,
		DoorName:         doorName,
	}, nil
}

// TitleWords uppercases the first letter of each space-separated word.
func TitleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
