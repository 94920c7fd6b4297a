package listener

import (
	"encoding/json"
	"fmt"
	"strconv"

	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Notification is the decoded application-level message delivered to handlers.
// The queue receives SNS notification envelopes whose Message field is itself
// a JSON document, so decoding happens in two passes.
type Notification struct {
	Type             string
	MessageID        string
	TopicArn         string
	Subject          string
	Message          map[string]any
	Timestamp        string
	SignatureVersion string
	Signature        string
	SigningCertURL   string
	UnsubscribeURL   string
}

type notificationWire struct {
	Type             string `json:"Type"`
	MessageId        string `json:"MessageId"`
	TopicArn         string `json:"TopicArn"`
	Subject          string `json:"Subject"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
	UnsubscribeURL   string `json:"UnsubscribeURL"`
}

// envelope is the transport-level view of one received message. It is owned
// by a single processing goroutine from dispatch until the ack decision.
type envelope struct {
	messageID     string
	body          string
	receiptHandle string
	receiveCount  int
}

// decodeEnvelope extracts the fields needed for the ack decision from a raw
// SQS message. A missing or malformed ApproximateReceiveCount attribute means
// the receive call was not configured to request it, so it is an error rather
// than a value to default.
func decodeEnvelope(msg sqstypes.Message) (envelope, error) {
	if msg.ReceiptHandle == nil {
		return envelope{}, fmt.Errorf("message has no receipt handle")
	}

	countStr, ok := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return envelope{}, fmt.Errorf("message has no ApproximateReceiveCount attribute")
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return envelope{}, fmt.Errorf("invalid ApproximateReceiveCount %q: %w", countStr, err)
	}

	var messageID string
	if msg.MessageId != nil {
		messageID = *msg.MessageId
	}

	var body string
	if msg.Body != nil {
		body = *msg.Body
	}

	return envelope{
		messageID:     messageID,
		body:          body,
		receiptHandle: *msg.ReceiptHandle,
		receiveCount:  count,
	}, nil
}

// decodeNotification parses a message body into a Notification. The inner
// Message field is double-encoded and is parsed as a second pass.
func decodeNotification(body string) (Notification, error) {
	var wire notificationWire

	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return Notification{}, fmt.Errorf("failed to decode notification body: %w", err)
	}

	if wire.Type == "" || wire.MessageId == "" || wire.Message == "" {
		return Notification{}, fmt.Errorf("notification body is missing required fields")
	}

	var message map[string]any
	if err := json.Unmarshal([]byte(wire.Message), &message); err != nil {
		return Notification{}, fmt.Errorf("failed to decode inner message: %w", err)
	}

	return Notification{
		Type:             wire.Type,
		MessageID:        wire.MessageId,
		TopicArn:         wire.TopicArn,
		Subject:          wire.Subject,
		Message:          message,
		Timestamp:        wire.Timestamp,
		SignatureVersion: wire.SignatureVersion,
		Signature:        wire.Signature,
		SigningCertURL:   wire.SigningCertURL,
		UnsubscribeURL:   wire.UnsubscribeURL,
	}, nil
}
