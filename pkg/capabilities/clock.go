// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// ClockName is the registered name of the clock capability.
const ClockName = "Time Tool"

// ClockLayout renders date, time, zone abbreviation and numeric offset.
const ClockLayout = "2006-01-02 15:04:05 MST-0700"

// Clock reports the current time, optionally in an IANA time zone.
type Clock struct {
	now func() time.Time
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithNow replaces the time source.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

// NewClock creates the clock capability.
func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Clock) Name() string { return ClockName }

func (c *Clock) Description() string {
	return "Gives the current time for a given city's timezone like Europe/Lisbon, America/New_York etc. " +
		"If no timezone is provided, it returns the local time."
}

// Invoke returns the formatted current time. An unknown zone is reported in
// the returned text rather than as an error.
func (c *Clock) Invoke(_ context.Context, args []string) (string, error) {
	now := c.now()
	if len(args) > 0 {
		if zone := strings.TrimSpace(args[0]); zone != "" {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Sprintf("Invalid timezone: %s", zone), nil
			}
			now = now.In(loc)
		}
	}
	return fmt.Sprintf("The current time is %s.", now.Format(ClockLayout)), nil
}
