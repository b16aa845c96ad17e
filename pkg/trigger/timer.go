// Package trigger decides, once per tick, whether a workflow's trigger should fire.
package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/quantnest/executor/pkg/models"
)

var (
	ErrInvalidMetadata  = errors.New("invalid trigger metadata")
	ErrUnsupportedAsset = errors.New("unsupported asset")
)

// UnsupportedAssetError names one symbol rejected for a market.
type UnsupportedAssetError struct {
	Market models.MarketType
	Symbol string
}

func (e *UnsupportedAssetError) Error() string {
	return fmt.Sprintf("unsupported asset %s for %s market", e.Symbol, e.Market)
}

func (e *UnsupportedAssetError) Unwrap() error {
	return ErrUnsupportedAsset
}

// Result is the outcome of a trigger evaluation. Condition carries the evaluated boolean of a
// conditional trigger into the run as its branching signal.
type Result struct {
	Fire      bool
	Condition *bool
}

// TimerDue fires when there is no previous run, or when interval seconds have elapsed since it started.
func TimerDue(lastRunStart *time.Time, intervalSeconds int, now time.Time) bool {
	if lastRunStart == nil {
		return true
	}

	return !now.Before(lastRunStart.Add(time.Duration(intervalSeconds) * time.Second))
}

// TimerInterval reads the interval from a timer node.
func TimerInterval(node *models.Node) (int, error) {
	meta, err := models.DecodeMetadata[models.TimerMetadata](node.Data.Metadata)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	return meta.Time, nil
}
