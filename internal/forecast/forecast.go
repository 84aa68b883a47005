// Package forecast reserves the prediction endpoints. No model is shipped;
// the default Predictor always reports ErrNotImplemented.
package forecast

import (
	"context"
	"errors"
)

// ErrNotImplemented is returned by predictors that have no model.
var ErrNotImplemented = errors.New("forecast: not implemented")

// ErrUnknownTarget is returned for targets that cannot be forecast.
var ErrUnknownTarget = errors.New("forecast: unknown target")

// Targets accepted by the endpoint.
const (
	TargetPurchaseOrders = "po"
	TargetReceipts       = "par"
	TargetInventory      = "inventory"
)

// Point is one forecast value.
type Point struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// Forecast is a predictor's output for a target.
type Forecast struct {
	Target string  `json:"target"`
	Points []Point `json:"points"`
}

// Predictor produces forecasts for a target.
type Predictor interface {
	Predict(ctx context.Context, target string) (Forecast, error)
}

// Noop is the placeholder Predictor.
type Noop struct{}

// Predict validates target and reports ErrNotImplemented.
func (Noop) Predict(ctx context.Context, target string) (Forecast, error) {
	if !validTarget(target) {
		return Forecast{}, ErrUnknownTarget
	}
	return Forecast{}, ErrNotImplemented
}

func validTarget(target string) bool {
	switch target {
	case TargetPurchaseOrders, TargetReceipts, TargetInventory:
		return true
	}
	return false
}
