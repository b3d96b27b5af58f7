// Package geotz maps a shared location to an IANA timezone name.
package geotz

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"

	"github.com/flashblaze/drinky-bot/internal/domain"
)

var ErrNoTimezone = errors.New("no timezone for location")

// Resolver finds the timezone of a coordinate.
type Resolver interface {
	Lookup(lat, lng float64) (string, error)
}

// Finder is a Resolver backed by tzf's embedded polygon data.
// The data set is loaded lazily on first lookup.
type Finder struct {
	once   sync.Once
	finder tzf.F
	err    error
}

// NewFinder returns a lazily initialised Finder.
func NewFinder() *Finder {
	return &Finder{}
}

func (f *Finder) load() error {
	f.once.Do(func() {
		f.finder, f.err = tzf.NewDefaultFinder()
	})
	return f.err
}

// Lookup returns the IANA name for the coordinate. Names the local tzdata
// cannot load are rejected so they never reach the user's settings.
func (f *Finder) Lookup(lat, lng float64) (string, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("%w: %.4f,%.4f out of range", ErrNoTimezone, lat, lng)
	}
	if err := f.load(); err != nil {
		return "", fmt.Errorf("load timezone data: %w", err)
	}

	name := f.finder.GetTimezoneName(lng, lat)
	if name == "" {
		return "", fmt.Errorf("%w: %.4f,%.4f", ErrNoTimezone, lat, lng)
	}
	return domain.ValidateTZ(name)
}
