package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/portrait-studio/internal/store"
)

type fakeBus struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (f *fakeBus) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func record() *store.RunRecord {
	return &store.RunRecord{
		RunID:          "run-7",
		Studio:         "background",
		Status:         "best_effort",
		InputImageRef:  "s3://b/in.jpg",
		OutputImageRef: "s3://b/out.png",
		Attempts:       make([]store.AttemptSummary, 4),
		BestComposite:  0.84,
		DurationMs:     5100,
	}
}

func TestRunCompleted(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "studio-bus")
	require.NoError(t, p.RunCompleted(context.Background(), record()))

	require.Len(t, bus.inputs, 1)
	entry := bus.inputs[0].Entries[0]
	assert.Equal(t, "portrait-studio", aws.ToString(entry.Source))
	assert.Equal(t, "PortraitEditCompleted", aws.ToString(entry.DetailType))
	assert.Equal(t, "studio-bus", aws.ToString(entry.EventBusName))

	var detail RunCompleted
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "run-7", detail.RunID)
	assert.Equal(t, "best_effort", detail.Status)
	assert.Equal(t, 4, detail.Attempts)
	assert.Equal(t, 0.84, detail.BestComposite)
}

func TestRunCompletedDefaultBus(t *testing.T) {
	bus := &fakeBus{}
	require.NoError(t, NewPublisher(bus, "").RunCompleted(context.Background(), record()))
	assert.Nil(t, bus.inputs[0].Entries[0].EventBusName)
}

func TestRunCompletedErrors(t *testing.T) {
	bus := &fakeBus{err: errors.New("access denied")}
	err := NewPublisher(bus, "").RunCompleted(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	bus = &fakeBus{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []eventbridgetypes.PutEventsResultEntry{{
			ErrorCode:    aws.String("InternalFailure"),
			ErrorMessage: aws.String("try again"),
		}},
	}}
	err = NewPublisher(bus, "").RunCompleted(context.Background(), record())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InternalFailure")
}
