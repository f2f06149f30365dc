package report

import (
	"testing"
	"time"

	"breakwatch/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 14, hour, minute, 0, 0, time.UTC)
}

func dirEvent(userID string, dir model.Direction, ts time.Time) model.NormalizedEvent {
	return model.NormalizedEvent{
		EventID:   "ev-" + ts.Format("150405"),
		EventType: "DOOR_ACCESS_GRANTED",
		Timestamp: ts,
		UserID:    userID,
		UserName:  "User " + userID,
		SiteName:  "Plant 7",
		Direction: dir,
		DoorID:    "door-1",
		DoorName:  "Back Entrance",
	}
}

func apbEvent(userID, eventType, message string, ts time.Time) model.NormalizedEvent {
	return model.NormalizedEvent{
		EventID:          "apb-" + ts.Format("150405"),
		EventType:        eventType,
		ViolationMessage: message,
		Timestamp:        ts,
		UserID:           userID,
		UserName:         "User " + userID,
		SiteName:         "Plant 7",
		Direction:        model.DirectionUnknown,
		DoorID:           "door-1",
		DoorName:         "Back Entrance",
	}
}

func TestPairSessionsSimplePair(t *testing.T) {
	events := []model.NormalizedEvent{
		dirEvent("u1", model.DirectionIn, at(9, 0)),
		dirEvent("u1", model.DirectionOut, at(9, 50)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.DurationMs != 50*60_000 {
		t.Fatalf("duration = %d", p.DurationMs)
	}
	if p.DurationLabel != "50m" {
		t.Fatalf("label = %q", p.DurationLabel)
	}
	if p.Area != "Break Area" {
		t.Fatalf("area = %q", p.Area)
	}
	if p.InEvent.Time != "09:00:00" || p.OutEvent.Time != "09:50:00" {
		t.Fatalf("stamps = %q / %q", p.InEvent.Time, p.OutEvent.Time)
	}
	if p.InEvent.LocationLabel != "Back Entrance" {
		t.Fatalf("location = %q", p.InEvent.LocationLabel)
	}
}

func TestPairSessionsMostRecentInWins(t *testing.T) {
	events := []model.NormalizedEvent{
		dirEvent("u1", model.DirectionIn, at(9, 0)),
		dirEvent("u1", model.DirectionIn, at(9, 20)),
		dirEvent("u1", model.DirectionOut, at(9, 30)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	if res.Pairs[0].InEvent.Time != "09:20:00" {
		t.Fatalf("pair should use the second in, got %q", res.Pairs[0].InEvent.Time)
	}
	if res.Pairs[0].DurationMs != 10*60_000 {
		t.Fatalf("duration = %d", res.Pairs[0].DurationMs)
	}
}

func TestPairSessionsOrphanOutDropped(t *testing.T) {
	events := []model.NormalizedEvent{
		dirEvent("u1", model.DirectionOut, at(9, 0)),
		dirEvent("u1", model.DirectionIn, at(9, 10)),
		dirEvent("u1", model.DirectionOut, at(9, 20)),
		dirEvent("u1", model.DirectionOut, at(9, 25)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	if res.UnpairedOut != 2 {
		t.Fatalf("unpaired outs = %d, want 2", res.UnpairedOut)
	}
}

func TestPairSessionsTrailingInDiscarded(t *testing.T) {
	events := []model.NormalizedEvent{
		dirEvent("u1", model.DirectionIn, at(9, 0)),
		dirEvent("u1", model.DirectionOut, at(9, 10)),
		dirEvent("u1", model.DirectionIn, at(17, 0)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("trailing in must not emit a pair, got %d pairs", len(res.Pairs))
	}
}

func TestPairSessionsViolationDoesNotTouchPendingIn(t *testing.T) {
	events := []model.NormalizedEvent{
		dirEvent("u1", model.DirectionIn, at(9, 0)),
		apbEvent("u1", "ANTIPASSBACK_VIOLATION", "", at(9, 5)),
		dirEvent("u1", model.DirectionOut, at(9, 30)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	if res.Pairs[0].InEvent.Time != "09:00:00" {
		t.Fatalf("violation must not consume the pending in, got %q", res.Pairs[0].InEvent.Time)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(res.Violations))
	}
	if res.Violations[0].Message != "Violation" {
		t.Fatalf("derived message = %q", res.Violations[0].Message)
	}
}

func TestPairSessionsViolationMessagePreferred(t *testing.T) {
	events := []model.NormalizedEvent{
		apbEvent("u1", "ANTIPASSBACK_HARD_VIOLATION", "badge reused at zone B", at(11, 0)),
	}
	res := PairSessions(events, "Break Area")
	if len(res.Violations) != 1 {
		t.Fatalf("violations = %d", len(res.Violations))
	}
	v := res.Violations[0]
	if v.Message != "badge reused at zone B" {
		t.Fatalf("explicit message must win, got %q", v.Message)
	}
	if v.EventType != "ANTIPASSBACK_HARD_VIOLATION" {
		t.Fatalf("event type = %q", v.EventType)
	}
}

func TestPairSessionsViolationLabelFromType(t *testing.T) {
	events := []model.NormalizedEvent{
		apbEvent("u1", "ANTIPASSBACK_SOFT_VIOLATION", "", at(11, 0)),
	}
	res := PairSessions(events, "Break Area")
	if res.Violations[0].Message != "Soft Violation" {
		t.Fatalf("label = %q", res.Violations[0].Message)
	}
}

func TestPairSessionsDurationFlooredAtZero(t *testing.T) {
	// Two swipes in the same second can land out-of-order at ms
	// precision upstream; the pair duration never goes negative.
	in := dirEvent("u1", model.DirectionIn, at(9, 0).Add(500*time.Millisecond))
	out := dirEvent("u1", model.DirectionOut, at(9, 0))
	res := PairSessions([]model.NormalizedEvent{in, out}, "Break Area")
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d", len(res.Pairs))
	}
	if res.Pairs[0].DurationMs != 0 {
		t.Fatalf("duration = %d, want 0", res.Pairs[0].DurationMs)
	}
}

func TestPairSessionsNeverMorePairsThanOuts(t *testing.T) {
	dirs := []model.Direction{
		model.DirectionIn, model.DirectionIn, model.DirectionOut,
		model.DirectionOut, model.DirectionIn, model.DirectionOut,
		model.DirectionIn,
	}
	events := make([]model.NormalizedEvent, 0, len(dirs))
	outs := 0
	for i, d := range dirs {
		events = append(events, dirEvent("u1", d, at(9, i)))
		if d == model.DirectionOut {
			outs++
		}
	}
	res := PairSessions(events, "Break Area")
	if len(res.Pairs) > outs {
		t.Fatalf("pairs %d > outs %d", len(res.Pairs), outs)
	}
	for _, p := range res.Pairs {
		if p.OutEvent.Time < p.InEvent.Time {
			t.Fatalf("pair out %q before in %q", p.OutEvent.Time, p.InEvent.Time)
		}
	}
}
