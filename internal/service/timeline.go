package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/reelforge/internal/domain"
)

// Timeline computes publish slots from channel upload-time policies.
type Timeline struct {
	defaultLoc *time.Location
}

// NewTimeline creates a Timeline. Channels without a timezone use loc.
func NewTimeline(loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.UTC
	}
	return &Timeline{defaultLoc: loc}
}

// Location returns the zone a channel's upload times are expressed in.
func (t *Timeline) Location(ch *domain.Channel) *time.Location {
	if ch == nil || ch.Timezone == "" {
		return t.defaultLoc
	}
	loc, err := time.LoadLocation(ch.Timezone)
	if err != nil {
		return t.defaultLoc
	}
	return loc
}

// NextSlot returns the next occurrence of the channel's upload time for vt strictly after now.
// A now equal to the configured time counts as already passed.
func (t *Timeline) NextSlot(ch *domain.Channel, vt domain.VideoType, now time.Time) (time.Time, error) {
	if ch == nil {
		return time.Time{}, domain.ErrChannelNotFound
	}
	return NextOccurrence(ch.UploadTime(vt), t.Location(ch), now)
}

// NextOccurrence returns the first instant after now at which the wall clock in loc reads clock ("HH:MM").
func NextOccurrence(clock string, loc *time.Location, now time.Time) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	for !slot.After(now) {
		local = local.AddDate(0, 0, 1)
		slot = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	}
	return slot, nil
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q is not HH:MM", domain.ErrInvalidSchedule, clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", domain.ErrInvalidSchedule, clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", domain.ErrInvalidSchedule, clock)
	}
	return hour, minute, nil
}
