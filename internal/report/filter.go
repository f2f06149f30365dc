package report

import "breakwatch/internal/model"

// FilterForDoor keeps events relevant to the target door, preserving
// order: directional traffic at that door, plus any anti-passback
// event regardless of how well its door id matches (APB events report
// against the zone configuration directly).
func FilterForDoor(events []model.NormalizedEvent, doorID string) []model.NormalizedEvent {
	out := make([]model.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if model.IsAPBType(ev.EventType) {
			out = append(out, ev)
			continue
		}
		if ev.DoorID != doorID {
			continue
		}
		if ev.Direction == model.DirectionIn || ev.Direction == model.DirectionOut {
			out = append(out, ev)
		}
	}
	return out
}
