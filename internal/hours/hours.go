// Package hours provides the business-hours gate consulted before dispatch.
package hours

import (
	"fmt"
	"time"
)

// Gate reports whether a tenant's channel is inside operating hours. It is
// a pure predicate; the engine never advances conversation state while the
// gate is closed.
type Gate interface {
	IsOpen(tenantID, channelID string, now time.Time) bool
}

// Window is one open interval starting on Weekday. A To earlier than From
// spans midnight: the window opens on Weekday and closes the next day at To.
type Window struct {
	Weekday time.Weekday `json:"weekday"`
	From    string       `json:"from"` // "09:00"
	To      string       `json:"to"`   // "18:00"
}

func (w Window) contains(t time.Time) bool {
	from, err := parseClock(w.From)
	if err != nil {
		return false
	}
	to, err := parseClock(w.To)
	if err != nil {
		return false
	}

	minute := t.Hour()*60 + t.Minute()
	if to < from {
		// Overnight window.
		switch t.Weekday() {
		case w.Weekday:
			return minute >= from
		case (w.Weekday + 1) % 7:
			return minute < to
		default:
			return false
		}
	}
	if t.Weekday() != w.Weekday {
		return false
	}
	return minute >= from && minute < to
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}

// Schedule is a weekly-window Gate. Tenants or tenant/channel pairs without
// configured windows are open around the clock.
type Schedule struct {
	windows map[string][]Window
}

// NewSchedule builds an empty schedule (everything open).
func NewSchedule() *Schedule {
	return &Schedule{windows: make(map[string][]Window)}
}

// Set replaces the windows for a tenant/channel pair. An empty channelID
// configures the tenant-wide default.
func (s *Schedule) Set(tenantID, channelID string, windows []Window) {
	s.windows[scheduleKey(tenantID, channelID)] = windows
}

// IsOpen implements Gate. Channel-specific windows win over the tenant
// default; no configuration at all means always open.
func (s *Schedule) IsOpen(tenantID, channelID string, now time.Time) bool {
	windows, ok := s.windows[scheduleKey(tenantID, channelID)]
	if !ok {
		windows, ok = s.windows[scheduleKey(tenantID, "")]
	}
	if !ok {
		return true
	}
	for _, w := range windows {
		if w.contains(now) {
			return true
		}
	}
	return false
}

func scheduleKey(tenantID, channelID string) string {
	return tenantID + "/" + channelID
}
