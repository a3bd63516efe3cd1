package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"staybook/internal/app/commands"
	loyaltyapp "staybook/internal/app/handlers/loyalty"
)

// ReviewEventHandler feeds review-submitted events from the review service's
// topic into loyalty accrual. Malformed or irrelevant messages are logged and
// acknowledged; the stream must keep moving.
type ReviewEventHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type reviewEventEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ReviewID string `json:"review_id"`
		AuthorID string `json:"author_id"`
		Rating   int    `json:"rating"`
	} `json:"data"`
}

func (h ReviewEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope reviewEventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("review event decode failed", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		}
		return nil
	}
	if envelope.Type != "review.submitted.v1" {
		return nil
	}
	if envelope.Data.AuthorID == "" || envelope.Data.ReviewID == "" {
		if h.Logger != nil {
			h.Logger.Warn("review event missing fields", "topic", msg.Topic, "offset", msg.Offset)
		}
		return nil
	}
	cmd := loyaltyapp.AccrueReviewCommand{
		ReviewID: envelope.Data.ReviewID,
		AuthorID: envelope.Data.AuthorID,
		Rating:   envelope.Data.Rating,
	}
	if _, err := commands.Dispatch[loyaltyapp.AccrueReviewCommand, *loyaltyapp.AccrueReviewResult](ctx, h.Commands, cmd); err != nil {
		if h.Logger != nil {
			h.Logger.Error("review accrual failed", "error", err, "review_id", envelope.Data.ReviewID)
		}
		return err
	}
	return nil
}

var _ MessageHandler = ReviewEventHandler{}
