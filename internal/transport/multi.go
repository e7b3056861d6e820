// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Multi fans every event out to several reporters. One failing reporter does
// not stop the others; their errors are joined.
type Multi []Reporter

// ReportStomp forwards ev to every reporter in order.
func (m Multi) ReportStomp(ctx context.Context, ev StompEvent) error {
	var errs []error
	for i, r := range m {
		if err := r.ReportStomp(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("reporter %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Reporter = Multi(nil)
