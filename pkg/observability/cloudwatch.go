package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used by the sink
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch limits PutMetricData to 1000 datums per call
const maxDatums = 1000

// CloudWatchMetrics buffers measurements and flushes them on an interval.
// Queue depth and session gauges are reported as their latest value.
type CloudWatchMetrics struct {
	client    CloudWatchAPI
	namespace string
	interval  time.Duration
	logger    *zap.Logger

	mu         sync.Mutex
	buffer     []types.MetricDatum
	queueDepth int
	sessions   int

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewCloudWatchMetrics creates a CloudWatch sink
func NewCloudWatchMetrics(client CloudWatchAPI, namespace string, interval time.Duration, logger *zap.Logger) *CloudWatchMetrics {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CloudWatchMetrics{
		client:      client,
		namespace:   namespace,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

func (m *CloudWatchMetrics) ObserveRemoteCall(operation string, duration time.Duration, err error) {
	dims := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Status"), Value: aws.String(statusOf(err))},
	}
	m.add(
		datum("RemoteOperationLatency", dims, float64(duration.Milliseconds()), types.StandardUnitMilliseconds),
		datum("RemoteOperationCount", dims, 1, types.StandardUnitCount),
	)
}

func (m *CloudWatchMetrics) AddQueueDepth(delta int) {
	m.mu.Lock()
	m.queueDepth += delta
	m.mu.Unlock()
}

func (m *CloudWatchMetrics) SetActiveSessions(n int) {
	m.mu.Lock()
	m.sessions = n
	m.mu.Unlock()
}

func (m *CloudWatchMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	dims := []types.Dimension{
		{Name: aws.String("Method"), Value: aws.String(method)},
		{Name: aws.String("Route"), Value: aws.String(route)},
	}
	m.add(datum("RequestLatency", dims, float64(duration.Milliseconds()), types.StandardUnitMilliseconds))
	if status >= 500 {
		m.add(datum("ServerErrors", dims, 1, types.StandardUnitCount))
	}
}

func (m *CloudWatchMetrics) add(data ...types.MetricDatum) {
	m.mu.Lock()
	m.buffer = append(m.buffer, data...)
	m.mu.Unlock()
}

// Start flushes on every interval until Stop
func (m *CloudWatchMetrics) Start(ctx context.Context) {
	go func() {
		defer close(m.stoppedChan)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				m.Flush(context.Background())
				return
			case <-ticker.C:
				m.Flush(ctx)
			}
		}
	}()
}

// Stop flushes what is buffered and stops the flush loop
func (m *CloudWatchMetrics) Stop() {
	close(m.stopChan)
	<-m.stoppedChan
}

// Flush sends buffered datums. Failures are logged and the batch is dropped.
func (m *CloudWatchMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	data := m.buffer
	m.buffer = nil
	gauges := []types.MetricDatum{
		datum("SyncQueueDepth", nil, float64(m.queueDepth), types.StandardUnitCount),
		datum("ActiveSessions", nil, float64(m.sessions), types.StandardUnitCount),
	}
	m.mu.Unlock()

	data = append(data, gauges...)
	for i := 0; i < len(data); i += maxDatums {
		end := i + maxDatums
		if end > len(data) {
			end = len(data)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: data[i:end],
		})
		if err != nil {
			m.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("count", end-i))
		}
	}
}

func datum(name string, dims []types.Dimension, value float64, unit types.StandardUnit) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dims,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
	}
}
