package logs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/voltlake/go-aws/awsconfig"
	"github.com/voltlake/go-aws/log"
)

const defaultMaxPages = 10

// LogEvent is one structured log line returned from CloudWatch Logs. The
// message is expected to be JSON and is parsed on decode.
type LogEvent struct {
	LogStreamName string
	Timestamp     time.Time
	IngestionTime time.Time
	EventID       string
	Message       map[string]any
}

type QueryOptions struct {
	// ExtraFilter adds property matches to the filter pattern, e.g.
	// {"body.price_area": "NL"}.
	ExtraFilter map[string]string
	// MaxPages caps how many filter calls are made when the result does not
	// fit in one page. Default 10.
	MaxPages int
	// Region overrides AWS_REGION / the library default region.
	Region string
}

var (
	mu      sync.Mutex
	clients = map[string]*cloudwatchlogs.Client{}
)

func getClient(ctx context.Context, region string) (*cloudwatchlogs.Client, error) {
	region = awsconfig.Region(region)

	mu.Lock()
	defer mu.Unlock()

	if client, ok := clients[region]; ok {
		return client, nil
	}

	cfg, err := awsconfig.Get(ctx, region)
	if err != nil {
		return nil, err
	}

	client := cloudwatchlogs.NewFromConfig(cfg)
	clients[region] = client

	return client, nil
}

// filterPattern builds a CloudWatch Logs metric filter pattern matching JSON
// log lines whose event property equals event, plus any extra property
// matches. Extra keys are sorted so the pattern is deterministic.
func filterPattern(event string, extra map[string]string) string {
	parts := []string{fmt.Sprintf(`( $.event = %q )`, event)}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`( $.%s = %q )`, k, extra[k]))
	}

	return fmt.Sprintf("{ %s }", strings.Join(parts, " && "))
}

// GetLogEvents queries a log group for structured log lines with the given
// event property between startTime and endTime, following pagination up to
// MaxPages pages.
func GetLogEvents(ctx context.Context, event, logGroup string, startTime, endTime time.Time, options ...QueryOptions) ([]LogEvent, error) {
	opts := QueryOptions{MaxPages: defaultMaxPages}
	if len(options) > 0 {
		opts = options[0]
		// ExtraFilter is a map, so MergeObjects cannot default this struct.
		if opts.MaxPages == 0 {
			opts.MaxPages = defaultMaxPages
		}
	}

	client, err := getClient(ctx, opts.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudwatch logs client: %w", err)
	}

	pattern := filterPattern(event, opts.ExtraFilter)
	logger := log.FromContext(ctx)

	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(logGroup),
		FilterPattern: aws.String(pattern),
		StartTime:     aws.Int64(startTime.UnixMilli()),
		EndTime:       aws.Int64(endTime.UnixMilli()),
	}

	var events []LogEvent

	for page := 0; page < opts.MaxPages; page++ {
		output, err := client.FilterLogEvents(ctx, input)
		if err != nil {
			return events, fmt.Errorf("failed to filter log events in %s: %w", logGroup, err)
		}

		for _, e := range output.Events {
			events = append(events, decodeLogEvent(e.LogStreamName, e.EventId, e.Timestamp, e.IngestionTime, e.Message))
		}

		if output.NextToken == nil {
			return events, nil
		}

		input.NextToken = output.NextToken
		logger.Infof("More logs to fetch for pattern %s, page %d/%d", pattern, page+1, opts.MaxPages)
	}

	logger.Warning(fmt.Sprintf("Hit the page cap of %d with more log events remaining, increase MaxPages to fetch everything", opts.MaxPages))

	return events, nil
}

func decodeLogEvent(logStreamName, eventID *string, timestamp, ingestionTime *int64, message *string) LogEvent {
	event := LogEvent{
		LogStreamName: aws.ToString(logStreamName),
		EventID:       aws.ToString(eventID),
		Timestamp:     time.UnixMilli(aws.ToInt64(timestamp)),
		IngestionTime: time.UnixMilli(aws.ToInt64(ingestionTime)),
	}

	// Non-JSON log lines keep a nil Message rather than failing the query.
	if message != nil {
		_ = json.Unmarshal([]byte(*message), &event.Message)
	}

	return event
}
