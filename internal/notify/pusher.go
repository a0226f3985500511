package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/MikeMC777/cafeteria/internal/awsx"
)

// SQSPusher hands push messages to the delivery service through an SQS queue.
type SQSPusher struct {
	SQS      awsx.SQSAPI
	QueueURL string
}

func NewSQSPusher(client awsx.SQSAPI, queueURL string) *SQSPusher {
	return &SQSPusher{SQS: client, QueueURL: queueURL}
}

func (p *SQSPusher) Push(ctx context.Context, msg PushMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: awsString(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"type":            {DataType: awsString("String"), StringValue: awsString(string(msg.Type))},
			"notification_id": {DataType: awsString("String"), StringValue: awsString(msg.NotificationID)},
		},
	}
	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			return fmt.Errorf("send push (%s): %s: %w", ae.ErrorCode(), ae.ErrorMessage(), err)
		}
		return fmt.Errorf("send push: %w", err)
	}
	return nil
}

// LogPusher only logs. It stands in when no push queue is configured.
type LogPusher struct{ Log *slog.Logger }

func (p LogPusher) Push(_ context.Context, msg PushMessage) error {
	p.Log.Debug("push", "notification_id", msg.NotificationID, "type", msg.Type, "title", msg.Title)
	return nil
}

func awsString(s string) *string { return &s }
