//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"portal-gateway/internal/audit"
	"portal-gateway/pkg/testutil/containers"
)

func TestKafkaSinkPublishes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := containers.NewRedpandaContainer(t).Broker
	const topic = "portal.audit.test"

	sink, err := audit.NewKafkaSink(ctx, []string{broker}, topic)
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		Tag:        audit.TagDenied,
		Username:   "adam",
		Department: "Sales",
		Detail:     "Unauthorized access attempt | User groups: it_support",
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "adam", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, event.ID, got.ID)
	require.Equal(t, audit.TagDenied, got.Tag)
	require.Equal(t, event.Detail, got.Detail)
}
