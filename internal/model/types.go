package model

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionIn      Direction = "in"
	DirectionOut     Direction = "out"
	DirectionUnknown Direction = "unknown"
)

// APBEventPrefix marks vendor event types that report an anti-passback
// policy violation rather than normal door traffic.
const APBEventPrefix = "ANTIPASSBACK_"

func IsAPBType(eventType string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(eventType)), APBEventPrefix)
}

// RawEvent is a vendor access event exactly as the access-control API
// returns it. Timestamps are ISO-8601 UTC strings.
type RawEvent struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	DoorID    string       `json:"doorId"`
	Timestamp string       `json:"timestamp"`
	Info      RawEventInfo `json:"eventInfo"`
}

type RawEventInfo struct {
	UserID    string      `json:"userId"`
	UserName  string      `json:"userName"`
	SiteName  string      `json:"siteName"`
	Direction string      `json:"direction"`
	Message   string      `json:"message"`
	Door      RawDoorInfo `json:"door"`
}

type RawDoorInfo struct {
	Name     string `json:"name"`
	SiteName string `json:"siteName"`
}

type Door struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SiteID   string `json:"siteId"`
	SiteName string `json:"siteName"`
	Timezone string `json:"timezone"`
}

// NormalizedEvent is the canonical event shape every stage past the
// normalizer works with. Timestamp is zoned to the door's location.
type NormalizedEvent struct {
	EventID          string    `json:"eventId"`
	EventType        string    `json:"eventType"`
	ViolationMessage string    `json:"violationMessage,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	UserID           string    `json:"userId"`
	UserName         string    `json:"userName"`
	SiteName         string    `json:"siteName"`
	Direction        Direction `json:"direction"`
	DirectionLabel   string    `json:"directionLabel"`
	DoorID           string    `json:"doorId"`
	DoorName         string    `json:"doorName"`
}

type EventStamp struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	LocationLabel string `json:"locationLabel"`
}

type SessionPair struct {
	UserID        string     `json:"userId"`
	UserName      string     `json:"userName"`
	SiteName      string     `json:"siteName"`
	Area          string     `json:"area"`
	InEvent       EventStamp `json:"inEvent"`
	OutEvent      EventStamp `json:"outEvent"`
	DurationMs    int64      `json:"durationMs"`
	DurationLabel string     `json:"durationLabel"`
}

type ViolationRecord struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Message   string `json:"message"`
	EventType string `json:"eventType"`
}

type UserReport struct {
	UserID             string            `json:"userId"`
	UserName           string            `json:"userName"`
	SiteName           string            `json:"siteName"`
	TotalDurationMs    int64             `json:"totalDurationMs"`
	TotalDurationLabel string            `json:"totalDurationLabel"`
	Pairs              []SessionPair     `json:"pairs"`
	Violations         []ViolationRecord `json:"violations"`
}

type ReportRange struct {
	StartUnix int64  `json:"startUnix"`
	EndUnix   int64  `json:"endUnix"`
	TZ        string `json:"tz"`
}

type BreakReport struct {
	Door             Door         `json:"door"`
	GeneratedRange   ReportRange  `json:"generatedRange"`
	ThresholdMinutes int          `json:"thresholdMinutes"`
	Users            []UserReport `json:"users"`
}

// Credential is the cached vendor API token.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}
