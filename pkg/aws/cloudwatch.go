package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// CloudWatchLogsClient ships log lines to a CloudWatch Logs stream. It is an
// io.Writer so it can sit behind a zap core.
type CloudWatchLogsClient struct {
	client        *cloudwatchlogs.Client
	logGroupName  string
	logStreamName string
	enabled       bool

	mu            sync.Mutex
	sequenceToken *string
}

// NewCloudWatchLogsClient creates the log group and a per-process stream when
// enabled. Disabled clients swallow writes.
func NewCloudWatchLogsClient(ctx context.Context, cfg sdkaws.Config, serviceName, logGroupName string, enabled bool) (*CloudWatchLogsClient, error) {
	if logGroupName == "" {
		logGroupName = "/storefront/services"
	}

	c := &CloudWatchLogsClient{
		client:        cloudwatchlogs.NewFromConfig(cfg),
		logGroupName:  logGroupName,
		logStreamName: fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()),
		enabled:       enabled,
	}
	if !enabled {
		return c, nil
	}

	if err := c.ensureLogGroup(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure log group: %w", err)
	}
	if _, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(c.logGroupName),
		LogStreamName: sdkaws.String(c.logStreamName),
	}); err != nil {
		return nil, fmt.Errorf("failed to create log stream: %w", err)
	}
	return c, nil
}

func (c *CloudWatchLogsClient) ensureLogGroup(ctx context.Context) error {
	_, err := c.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: sdkaws.String(c.logGroupName),
	})
	if err != nil {
		var existsErr *types.ResourceAlreadyExistsException
		if !errors.As(err, &existsErr) {
			return err
		}
	}

	_, err = c.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    sdkaws.String(c.logGroupName),
		RetentionInDays: sdkaws.Int32(30),
	})
	if err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}
	return nil
}

// PutLogEvents sends log events to CloudWatch Logs
func (c *CloudWatchLogsClient) PutLogEvents(ctx context.Context, events []types.InputLogEvent) error {
	if !c.enabled || len(events) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  sdkaws.String(c.logGroupName),
		LogStreamName: sdkaws.String(c.logStreamName),
		LogEvents:     events,
		SequenceToken: c.sequenceToken,
	})
	if err != nil {
		return fmt.Errorf("failed to put log events: %w", err)
	}
	c.sequenceToken = out.NextSequenceToken
	return nil
}

// Write implements io.Writer. Delivery failures are reported on stderr and
// never fail the write.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	if !c.enabled {
		return len(p), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := types.InputLogEvent{
		Message:   sdkaws.String(string(p)),
		Timestamp: sdkaws.Int64(time.Now().UnixMilli()),
	}
	if err := c.PutLogEvents(ctx, []types.InputLogEvent{event}); err != nil {
		fmt.Fprintf(os.Stderr, "CloudWatch write error: %v\n", err)
	}
	return len(p), nil
}

// IsEnabled returns whether CloudWatch logging is enabled
func (c *CloudWatchLogsClient) IsEnabled() bool {
	return c.enabled
}
