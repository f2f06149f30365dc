package report

import (
	"strings"

	"breakwatch/internal/model"
	"breakwatch/internal/normalize"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// PairResult is one user's pairing outcome: strict in/out session
// pairs plus the anti-passback violations seen along the way.
type PairResult struct {
	Pairs       []model.SessionPair
	Violations  []model.ViolationRecord
	UnpairedOut int
}

// PairSessions walks one user's chronologically-sorted events and
// matches each out to the most recent unmatched in. A later in
// supersedes an earlier one that never paired; an out with no pending
// in is dropped; a trailing pending in is discarded. Anti-passback
// events only ever produce violation records and never touch the
// pending-in slot.
func PairSessions(events []model.NormalizedEvent, areaLabel string) PairResult {
	var res PairResult
	var pendingIn *model.NormalizedEvent
	for i := range events {
		ev := events[i]
		if model.IsAPBType(ev.EventType) {
			res.Violations = append(res.Violations, violationFrom(ev))
			continue
		}
		switch ev.Direction {
		case model.DirectionIn:
			pendingIn = &events[i]
		case model.DirectionOut:
			if pendingIn == nil {
				res.UnpairedOut++
				continue
			}
			res.Pairs = append(res.Pairs, buildPair(*pendingIn, ev, areaLabel))
			pendingIn = nil
		}
	}
	return res
}

func buildPair(in, out model.NormalizedEvent, areaLabel string) model.SessionPair {
	durationMs := out.Timestamp.Sub(in.Timestamp).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}
	return model.SessionPair{
		UserID:        in.UserID,
		UserName:      in.UserName,
		SiteName:      in.SiteName,
		Area:          areaLabel,
		InEvent:       stampFrom(in),
		OutEvent:      stampFrom(out),
		DurationMs:    durationMs,
		DurationLabel: FormatDurationMs(durationMs),
	}
}

func stampFrom(ev model.NormalizedEvent) model.EventStamp {
	return model.EventStamp{
		Date:          ev.Timestamp.Format(dateLayout),
		Time:          ev.Timestamp.Format(timeLayout),
		LocationLabel: ev.DoorName,
	}
}

func violationFrom(ev model.NormalizedEvent) model.ViolationRecord {
	message := ev.ViolationMessage
	if message == "" {
		message = violationLabel(ev.EventType)
	}
	return model.ViolationRecord{
		Date:      ev.Timestamp.Format(dateLayout),
		Time:      ev.Timestamp.Format(timeLayout),
		Message:   message,
		EventType: ev.EventType,
	}
}

// violationLabel turns e.g. "ANTIPASSBACK_SOFT_VIOLATION" into
// "Soft Violation".
func violationLabel(eventType string) string {
	t := strings.ToUpper(strings.TrimSpace(eventType))
	t = strings.TrimPrefix(t, model.APBEventPrefix)
	return normalize.TitleWords(strings.ReplaceAll(t, "_", " "))
}
