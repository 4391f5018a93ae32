// Package location is the device geolocation contract used by the site visit
// and punch flows.
package location

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
)

type Accuracy string

const (
	AccuracyBalanced Accuracy = "balanced"
	AccuracyHigh     Accuracy = "high"
)

var ErrPermissionDenied = fmt.Errorf("%w: permission to access location was denied", sitevisit.ErrPermission)

// Provider returns the device position. Implementations return an error
// wrapping ErrPermissionDenied when the user refused access.
type Provider interface {
	Current(ctx context.Context, accuracy Accuracy) (geo.Coordinate, error)
}

type ProviderFunc func(ctx context.Context, accuracy Accuracy) (geo.Coordinate, error)

func (f ProviderFunc) Current(ctx context.Context, accuracy Accuracy) (geo.Coordinate, error) {
	return f(ctx, accuracy)
}

// StaticProvider always reports the same position.
type StaticProvider struct {
	Coordinate geo.Coordinate
}

func (p StaticProvider) Current(ctx context.Context, accuracy Accuracy) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	if !p.Coordinate.Valid() {
		return geo.Coordinate{}, fmt.Errorf("invalid static coordinate %v", p.Coordinate)
	}
	return p.Coordinate, nil
}

// DeniedProvider behaves like a device where location access was refused.
type DeniedProvider struct{}

func (DeniedProvider) Current(ctx context.Context, accuracy Accuracy) (geo.Coordinate, error) {
	return geo.Coordinate{}, ErrPermissionDenied
}
