package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"breakwatch/internal/config"
	"breakwatch/internal/metrics"
	"breakwatch/internal/model"
	"breakwatch/internal/normalize"
)

// EventSource is the vendor collaborator the builder pulls from.
type EventSource interface {
	FetchDoors(ctx context.Context, siteID string) ([]model.Door, error)
	FetchAccessEvents(ctx context.Context, startUnix, endUnix int64) ([]model.RawEvent, error)
}

// ViolationSink receives the anti-passback violations surfaced in a
// finished report.
type ViolationSink interface {
	PublishViolations(ctx context.Context, userID, userName string, violations []model.ViolationRecord)
}

type Builder struct {
	source EventSource
	sink   ViolationSink
	logger *slog.Logger
	cfg    atomic.Value
}

func NewBuilder(source EventSource, sink ViolationSink, logger *slog.Logger, cfg *config.Config) *Builder {
	b := &Builder{
		source: source,
		sink:   sink,
		logger: logger,
	}
	b.cfg.Store(cfg)
	return b
}

func (b *Builder) UpdateConfig(cfg *config.Config) {
	b.cfg.Store(cfg)
}

func (b *Builder) config() *config.Config {
	if v := b.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (b *Builder) DefaultThreshold() int {
	return b.config().Report.DefaultThresholdMinutes
}

// Doors lists the doors of the configured site.
func (b *Builder) Doors(ctx context.Context) ([]model.Door, error) {
	return b.source.FetchDoors(ctx, b.config().Vendor.SiteID)
}

// Build fetches doors and events from the vendor and produces the
// break report for one door and one local day. Fetch or resolution
// failures abort the whole request; no partial report is returned.
func (b *Builder) Build(ctx context.Context, doorID, dateISO string, thresholdMinutes int) (model.BreakReport, error) {
	started := time.Now()
	cfg := b.config()

	doors, err := b.source.FetchDoors(ctx, cfg.Vendor.SiteID)
	if err != nil {
		metrics.ReportFailures.Inc()
		return model.BreakReport{}, fmt.Errorf("fetch doors: %w", err)
	}
	door, ok := findDoor(doors, doorID)
	if !ok {
		metrics.ReportFailures.Inc()
		return model.BreakReport{}, fmt.Errorf("%w: %q", ErrDoorNotFound, doorID)
	}
	loc := doorLocation(door, b.logger)
	start, end, err := dayRange(dateISO, loc)
	if err != nil {
		metrics.ReportFailures.Inc()
		return model.BreakReport{}, err
	}

	rawEvents, err := b.source.FetchAccessEvents(ctx, start.Unix(), end.Unix())
	if err != nil {
		metrics.ReportFailures.Inc()
		return model.BreakReport{}, fmt.Errorf("fetch access events: %w", err)
	}

	users, unpaired := computeUsers(rawEvents, door, loc, thresholdMinutes, cfg.Report.AreaLabel, b.logger)
	if unpaired > 0 {
		metrics.EventsUnpaired.Add(float64(unpaired))
		if b.logger != nil {
			b.logger.Debug("dropped exit events with no matching entry", "door_id", doorID, "count", unpaired)
		}
	}
	b.publish(ctx, users)

	metrics.ReportsBuilt.Inc()
	metrics.ReportDuration.Observe(time.Since(started).Seconds())
	return model.BreakReport{
		Door: door,
		GeneratedRange: model.ReportRange{
			StartUnix: start.Unix(),
			EndUnix:   end.Unix(),
			TZ:        door.Timezone,
		},
		ThresholdMinutes: thresholdMinutes,
		Users:            users,
	}, nil
}

func (b *Builder) publish(ctx context.Context, users []model.UserReport) {
	if b.sink == nil {
		return
	}
	for _, u := range users {
		if len(u.Violations) == 0 {
			continue
		}
		metrics.ViolationsFlagged.Add(float64(len(u.Violations)))
		b.sink.PublishViolations(ctx, u.UserID, u.UserName, u.Violations)
	}
}

// BuildBreakReport is the pure core: given the door list and the raw
// events for the window it is deterministic, with no I/O.
func BuildBreakReport(doorID, dateISO string, thresholdMinutes int, doors []model.Door, rawEvents []model.RawEvent, areaLabel string, logger *slog.Logger) (model.BreakReport, error) {
	door, ok := findDoor(doors, doorID)
	if !ok {
		return model.BreakReport{}, fmt.Errorf("%w: %q", ErrDoorNotFound, doorID)
	}
	loc := doorLocation(door, logger)
	start, end, err := dayRange(dateISO, loc)
	if err != nil {
		return model.BreakReport{}, err
	}
	users, _ := computeUsers(rawEvents, door, loc, thresholdMinutes, areaLabel, logger)
	return model.BreakReport{
		Door: door,
		GeneratedRange: model.ReportRange{
			StartUnix: start.Unix(),
			EndUnix:   end.Unix(),
			TZ:        door.Timezone,
		},
		ThresholdMinutes: thresholdMinutes,
		Users:            users,
	}, nil
}

func computeUsers(rawEvents []model.RawEvent, door model.Door, loc *time.Location, thresholdMinutes int, areaLabel string, logger *slog.Logger) ([]model.UserReport, int) {
	normalized := make([]model.NormalizedEvent, 0, len(rawEvents))
	for _, raw := range rawEvents {
		ev, err := normalize.Normalize(raw, loc, door)
		if err != nil {
			metrics.EventsMalformed.Inc()
			if logger != nil {
				logger.Warn("dropping malformed event", "event_id", raw.ID, "err", err)
			}
			continue
		}
		metrics.EventsNormalized.Inc()
		normalized = append(normalized, ev)
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Timestamp.Before(normalized[j].Timestamp)
	})
	filtered := FilterForDoor(normalized, door.ID)
	return Aggregate(GroupByUser(filtered), thresholdMinutes, areaLabel)
}

func findDoor(doors []model.Door, doorID string) (model.Door, bool) {
	for _, d := range doors {
		if d.ID == doorID {
			return d, true
		}
	}
	return model.Door{}, false
}

func doorLocation(door model.Door, logger *slog.Logger) *time.Location {
	if door.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(door.Timezone)
	if err != nil {
		if logger != nil {
			logger.Warn("unknown door timezone, falling back to UTC", "door_id", door.ID, "tz", door.Timezone)
		}
		return time.UTC
	}
	return loc
}

func dayRange(dateISO string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", dateISO, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateISO)
	}
	return day, day.AddDate(0, 0, 1), nil
}
