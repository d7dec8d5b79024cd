package eventbridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relmap/domain/events"
)

type fakeAPI struct {
	calls  []*eventbridge.PutEventsInput
	failed int32
}

func (f *fakeAPI) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		entry := types.PutEventsResultEntry{}
		if f.failed > 0 {
			entry.ErrorCode = aws.String("InternalFailure")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func TestPublishBatch_ChunksByTen(t *testing.T) {
	api := &fakeAPI{}
	pub := NewPublisher(api, "relmap-bus", zap.NewNop())

	batch := make([]events.DomainEvent, 23)
	for i := range batch {
		batch[i] = events.NewRelationDeleted("user-1", "relation-1", i+1)
	}

	require.NoError(t, pub.PublishBatch(context.Background(), batch))
	require.Len(t, api.calls, 3)
	assert.Len(t, api.calls[0].Entries, 10)
	assert.Len(t, api.calls[2].Entries, 3)

	entry := api.calls[0].Entries[0]
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeRelationDeleted, aws.ToString(entry.DetailType))

	var d Detail
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &d))
	assert.Equal(t, "user-1", d.OwnerID)
	assert.Equal(t, []string{"relation-1"}, d.Subjects)
}

func TestPublish_FailedEntries(t *testing.T) {
	api := &fakeAPI{failed: 1}
	pub := NewPublisher(api, "relmap-bus", zap.NewNop())

	err := pub.Publish(context.Background(), events.NewGraphCleared("user-1", nil, nil, 1))
	assert.Error(t, err)
}

func TestSubjects(t *testing.T) {
	deleted := events.NewPersonDeleted("u", "person-1", []string{"relation-1", "relation-2"}, 3)
	assert.Equal(t, []string{"person-1", "relation-1", "relation-2"}, Subjects(deleted))
	assert.Nil(t, Subjects(events.NewGraphCleared("u", []string{"person-1"}, nil, 1)))
}
