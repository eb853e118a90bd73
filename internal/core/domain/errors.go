package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
	ErrInvalidZoom         = errors.New("invalid zoom")
	ErrInvalidSource       = errors.New("invalid observation source")
	ErrInvalidGridSize     = errors.New("invalid grid size")
	ErrSessionNotFound     = errors.New("map session not found")
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)
