// Package system provides the wall clock used for record timestamps.
package system

import (
	"time"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// Clock implements crawler.Clock, reporting time in a fixed location.
type Clock struct {
	loc *time.Location
}

var _ crawler.Clock = (*Clock)(nil)

// New creates a UTC Clock.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock reporting in loc; nil means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
