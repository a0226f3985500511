package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/MikeMC777/cafeteria/internal/awsx"
)

const metricPushes = "NotificationPushes"

// CloudWatchMetrics publishes one datapoint per outcome.
type CloudWatchMetrics struct {
	client    awsx.CloudWatchAPI
	namespace string
	log       *slog.Logger
	now       func() time.Time
}

func NewCloudWatchMetrics(client awsx.CloudWatchAPI, namespace string, log *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		log:       log.With("component", "push_metrics"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *CloudWatchMetrics) Record(ctx context.Context, outcome Outcome, n int) {
	if n <= 0 {
		return
	}
	ts := m.now()
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{{
			MetricName: awsString(metricPushes),
			Timestamp:  &ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      awsFloat(float64(n)),
			Dimensions: []cwtypes.Dimension{{Name: awsString("Outcome"), Value: awsString(string(outcome))}},
		}},
	})
	if err != nil {
		m.log.Warn("put metric data failed", "outcome", outcome, "err", err)
	}
}

func awsFloat(f float64) *float64 { return &f }
