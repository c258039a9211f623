package geo

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/savelife/rescue/core/model"
)

// EarthRadiusMeters is the mean earth radius used to convert the angular
// great-circle distance into meters.
const EarthRadiusMeters = 6371010.0

// ErrInvalidCoordinate reports a latitude or longitude outside the
// representable range.
var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

// Distance returns the great-circle distance in meters between two positions
// on a spherical earth.
func Distance(a, b model.Position) float64 {
	p := s2.LatLngFromDegrees(a.Lat, a.Lon)
	q := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p.Distance(q).Radians() * EarthRadiusMeters
}

// Query returns the subset of candidates whose recorded position lies within
// radiusMeters of center, preserving candidate order. Devices without a
// position are excluded. A radius of zero or less matches nothing. Query has
// no side effects.
func Query(center model.Position, radiusMeters float64, candidates []model.Device) ([]model.Device, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, center.Lat, center.Lon)
	}
	if radiusMeters <= 0 {
		return nil, nil
	}
	var res []model.Device
	for _, d := range candidates {
		if d.Position == nil || !d.Position.Valid() {
			continue
		}
		if Distance(center, *d.Position) <= radiusMeters {
			res = append(res, d)
		}
	}
	return res, nil
}
