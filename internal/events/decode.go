// Package events decodes pipeline events from S3, SNS and EventBridge payloads and feeds them to
// the reconcilers from SQS queues, HTTP webhooks or Lambda invocations.
package events

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/vidshare/backend/internal/pipeline"
	"github.com/vidshare/backend/internal/transcoder"
)

const (
	s3TestEvent          = "s3:TestEvent"
	objectCreatedPrefix  = "ObjectCreated:"
	snsNotification      = "Notification"
	snsSubscriptionConf  = "SubscriptionConfirmation"
	mediaConvertSource   = "aws.mediaconvert"
	jobStateChangeDetail = "MediaConvert Job State Change"
)

// envelope captures the discriminating fields of every payload shape we accept.
type envelope struct {
	Type         string          `json:"Type"`
	Message      string          `json:"Message"`
	SubscribeURL string          `json:"SubscribeURL"`
	Event        string          `json:"Event"`
	Records      json.RawMessage `json:"Records"`
	Source       string          `json:"source"`
	DetailType   string          `json:"detail-type"`
	Detail       json.RawMessage `json:"detail"`
}

// SubscriptionConfirmURL returns the SubscribeURL of an SNS subscription confirmation.
func SubscriptionConfirmURL(body []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	if env.Type != snsSubscriptionConf || env.SubscribeURL == "" {
		return "", false
	}
	return env.SubscribeURL, true
}

// DecodeUploadEvent parses an S3 event notification, raw or wrapped in an SNS envelope. Test
// events and non ObjectCreated records decode to no events.
func DecodeUploadEvent(body []byte) ([]pipeline.UploadEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrMalformedEvent, err)
	}
	if env.Type == snsNotification && env.Message != "" {
		return DecodeUploadEvent([]byte(env.Message))
	}
	if env.Event == s3TestEvent {
		return nil, nil
	}
	if len(env.Records) == 0 {
		return nil, fmt.Errorf("%w: no S3 records", pipeline.ErrMalformedEvent)
	}
	var s3ev events.S3Event
	if err := json.Unmarshal(body, &s3ev); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrMalformedEvent, err)
	}
	return UploadEventsFromS3(s3ev), nil
}

// UploadEventsFromS3 converts the ObjectCreated records of an S3 event.
func UploadEventsFromS3(ev events.S3Event) []pipeline.UploadEvent {
	var out []pipeline.UploadEvent
	for _, r := range ev.Records {
		if !strings.HasPrefix(r.EventName, objectCreatedPrefix) {
			continue
		}
		out = append(out, pipeline.UploadEvent{
			Bucket: r.S3.Bucket.Name,
			Key:    objectKey(r.S3.Object),
		})
	}
	return out
}

func objectKey(o events.S3Object) string {
	if o.URLDecodedKey != "" {
		return o.URLDecodedKey
	}
	key, err := url.QueryUnescape(o.Key)
	if err != nil {
		return o.Key
	}
	return key
}

// jobStateDetail is the detail of a MediaConvert job state change event.
type jobStateDetail struct {
	Status       string            `json:"status"`
	JobID        string            `json:"jobId"`
	UserMetadata map[string]string `json:"userMetadata"`
	ErrorMessage string            `json:"errorMessage"`
	// correlationId is accepted for pushes that do not come from EventBridge.
	CorrelationID string `json:"correlationId"`
}

// DecodeJobStatusEvent parses an EventBridge MediaConvert job state change, raw or wrapped in an
// SNS envelope. A bare detail object ({"status", "userMetadata"} or {"status", "correlationId"})
// is accepted too.
func DecodeJobStatusEvent(body []byte) (pipeline.StatusEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return pipeline.StatusEvent{}, fmt.Errorf("%w: %v", pipeline.ErrMalformedEvent, err)
	}
	if env.Type == snsNotification && env.Message != "" {
		return DecodeJobStatusEvent([]byte(env.Message))
	}
	if len(env.Detail) > 0 {
		if env.Source != "" && env.Source != mediaConvertSource {
			return pipeline.StatusEvent{}, fmt.Errorf("%w: unexpected source %q", pipeline.ErrMalformedEvent, env.Source)
		}
		return StatusEventFromDetail(env.Detail)
	}
	return StatusEventFromDetail(body)
}

// StatusEventFromCloudWatch converts an EventBridge event delivered to a Lambda function.
func StatusEventFromCloudWatch(ev events.CloudWatchEvent) (pipeline.StatusEvent, error) {
	if ev.Source != "" && ev.Source != mediaConvertSource {
		return pipeline.StatusEvent{}, fmt.Errorf("%w: unexpected source %q", pipeline.ErrMalformedEvent, ev.Source)
	}
	return StatusEventFromDetail(ev.Detail)
}

// StatusEventFromDetail decodes the detail object of a job state change.
func StatusEventFromDetail(detail []byte) (pipeline.StatusEvent, error) {
	var d jobStateDetail
	if err := json.Unmarshal(detail, &d); err != nil {
		return pipeline.StatusEvent{}, fmt.Errorf("%w: %v", pipeline.ErrMalformedEvent, err)
	}
	if d.Status == "" {
		return pipeline.StatusEvent{}, fmt.Errorf("%w: missing status", pipeline.ErrMalformedEvent)
	}
	id := d.UserMetadata[transcoder.MetadataKeyID]
	if id == "" {
		id = d.CorrelationID
	}
	return pipeline.StatusEvent{
		Status:        d.Status,
		CorrelationID: id,
		JobID:         d.JobID,
		ErrorMessage:  d.ErrorMessage,
	}, nil
}
