package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"sosalert/pkg/apperrors"
)

// storeError wraps a driver error, turning deadline expiry into a Timeout.
func storeError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return apperrors.Wrap(err, apperrors.KindTimeout, apperrors.ErrTimeout.Message)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
