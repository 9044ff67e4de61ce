package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"
)

// EventSource is the EventBridge source of ingestion events.
const EventSource = "reference-images"

// DetailTypeTemplateIngested is the detail-type of TemplateIngested events.
const DetailTypeTemplateIngested = "TemplateIngested"

// TemplateIngested is published after a template is stored.
type TemplateIngested struct {
	TemplateID         string    `json:"templateId"`
	Source             string    `json:"source,omitempty"`
	AspectRatio        string    `json:"aspectRatio"`
	TagIDs             []string  `json:"tagIds"`
	ProposedTags       int       `json:"proposedTags"`
	FallbackDescriptor bool      `json:"fallbackDescriptor"`
	CostUSD            float64   `json:"costUsd"`
	IngestedAt         time.Time `json:"ingestedAt"`
}

// Publisher announces ingested templates.
type Publisher interface {
	Publish(ctx context.Context, event TemplateIngested) error
}

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher sends TemplateIngested events to a bus. An empty bus
// name selects the default bus.
type EventBridgePublisher struct {
	Client  EventBridgeAPI
	BusName string
}

func (p *EventBridgePublisher) Publish(ctx context.Context, event TemplateIngested) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal TemplateIngested: %w", err)
	}
	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(EventSource),
		DetailType: aws.String(DetailTypeTemplateIngested),
		Detail:     aws.String(string(detail)),
	}
	if p.BusName != "" {
		entry.EventBusName = aws.String(p.BusName)
	}

	result, err := p.Client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}
	log.Debug().Str("templateId", event.TemplateID).Msg("TemplateIngested emitted to EventBridge")
	return nil
}

// WorkerEvent is the payload of an asynchronous ingestion job. The image is
// referenced, not inlined: Lambda async payloads are limited to 256 KB.
type WorkerEvent struct {
	Type       string `json:"type"`
	JobID      string `json:"jobId"`
	TemplateID string `json:"templateId"`
	ImageRef   string `json:"imageRef"` // https URL or s3://bucket/key
	Source     string `json:"source,omitempty"`
}

// WorkerEventIngest is the WorkerEvent type of an ingestion job.
const WorkerEventIngest = "ingest"

// LambdaAPI is the subset of the Lambda client used here.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambdasvc.InvokeInput, optFns ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error)
}

// ErrDispatchNotConfigured is returned when no worker function is set.
var ErrDispatchNotConfigured = errors.New("ingest worker lambda not configured")

// LambdaDispatcher hands ingestion jobs to the worker Lambda with an async
// Event invocation, so the caller returns before the work starts.
type LambdaDispatcher struct {
	Client      LambdaAPI
	FunctionARN string
}

func (d *LambdaDispatcher) Dispatch(ctx context.Context, event WorkerEvent) error {
	if d == nil || d.Client == nil || d.FunctionARN == "" {
		return ErrDispatchNotConfigured
	}
	if event.Type == "" {
		event.Type = WorkerEventIngest
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal worker event: %w", err)
	}

	_, err = d.Client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(d.FunctionARN),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke worker lambda: %w", err)
	}
	log.Info().
		Str("jobId", event.JobID).
		Str("templateId", event.TemplateID).
		Int("payloadSize", len(payload)).
		Msg("Ingest worker invoked asynchronously")
	return nil
}
