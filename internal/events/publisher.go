// Package events publishes run lifecycle events to Amazon EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/portrait-studio/internal/store"
)

const (
	// Source identifies this service on the bus.
	Source = "portrait-studio"
	// DetailTypeRunCompleted is emitted once per finished run, whatever its status.
	DetailTypeRunCompleted = "PortraitEditCompleted"
)

// API is the subset of *eventbridge.Client used by Publisher.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// RunCompleted is the event detail.
type RunCompleted struct {
	RunID           string  `json:"runId"`
	Studio          string  `json:"studio"`
	Status          string  `json:"status"`
	InputImageRef   string  `json:"inputImageRef"`
	OutputImageRef  string  `json:"outputImageRef,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	BlockedCategory string  `json:"blockedCategory,omitempty"`
	Attempts        int     `json:"attempts"`
	BestComposite   float64 `json:"bestComposite"`
	DurationMs      int64   `json:"durationMs"`
}

// Publisher sends events to one bus.
type Publisher struct {
	client  API
	busName string
}

// NewPublisher creates a Publisher. An empty busName targets the account's
// default bus.
func NewPublisher(client API, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// RunCompleted publishes a PortraitEditCompleted event for rec.
func (p *Publisher) RunCompleted(ctx context.Context, rec *store.RunRecord) error {
	event := RunCompleted{
		RunID:           rec.RunID,
		Studio:          rec.Studio,
		Status:          rec.Status,
		InputImageRef:   rec.InputImageRef,
		OutputImageRef:  rec.OutputImageRef,
		Reason:          rec.Reason,
		BlockedCategory: rec.BlockedCategory,
		Attempts:        len(rec.Attempts),
		BestComposite:   rec.BestComposite,
		DurationMs:      rec.DurationMs,
	}
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", DetailTypeRunCompleted, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(DetailTypeRunCompleted),
		Detail:     aws.String(string(detail)),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("runId", rec.RunID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("runId", rec.RunID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Str("runId", rec.RunID).Str("status", rec.Status).Msg("Run completion emitted to EventBridge")
	return nil
}
