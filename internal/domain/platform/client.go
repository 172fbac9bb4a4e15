package platform

import (
	"context"
	"fmt"
	"time"

	"telegram_post_scheduler/internal/domain/target"
)

// Receipt describes a successful delivery.
type Receipt struct {
	MessageID int
	ChatID    int64
	SentAt    time.Time
}

// DeliveryError is returned by Client.Send when the platform rejects or fails a send.
type DeliveryError struct {
	TargetID string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.TargetID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Client sends content to a target on a third-party platform.
// This decouples the dispatcher from the specific bot library.
type Client interface {
	Send(ctx context.Context, t *target.Target, content *target.ContentItem) (Receipt, error)
}
