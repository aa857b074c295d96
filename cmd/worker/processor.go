package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/careatlas/therapist-directory/internal/aws"
)

const metricNamespace = "TherapistDirectory"

// Processor consumes therapist change events and emits one metric datum per
// event type, so dashboards can track create/update/delete rates.
type Processor struct {
	cloudwatch aws.CloudWatchAPI
	nowFunc    func() time.Time
}

// NewProcessor creates a worker processor with the CloudWatch client injected.
func NewProcessor(cw aws.CloudWatchAPI) *Processor {
	return &Processor{
		cloudwatch: cw,
		nowFunc:    time.Now,
	}
}

// Handle receives an SQS batch event and processes each message.
// Returning an error hands the batch back to SQS for retry and, eventually,
// the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ChangeMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.EventType == "" || msg.TherapistID == "" {
		return fmt.Errorf("incomplete change message: %s", rec.Body)
	}

	log.Printf("[worker] therapist=%s owner=%s event=%s", msg.TherapistID, msg.OwnerID, msg.EventType)

	now := p.nowFunc()
	one := 1.0
	namespace := metricNamespace
	metricName := "TherapistEvents"
	dimName := "EventType"

	_, err := p.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &metricName,
				Timestamp:  &now,
				Value:      &one,
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: &dimName, Value: &msg.EventType},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
