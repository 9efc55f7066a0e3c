package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignhub/backend/domain"
)

func TestBus_PublisherDoesNotReceiveOwnEvents(t *testing.T) {
	bus := NewBus()

	var selfGot, siblingGot []domain.Event
	_, err := bus.Subscribe("news-updates", "origin-a", func(ev domain.Event) {
		selfGot = append(selfGot, ev)
	})
	require.NoError(t, err)
	_, err = bus.Subscribe("news-updates", "origin-b", func(ev domain.Event) {
		siblingGot = append(siblingGot, ev)
	})
	require.NoError(t, err)

	ev := domain.NewEntityUpdated("news", "origin-a", nil)
	require.NoError(t, bus.Publish(context.Background(), "news-updates", ev))

	assert.Empty(t, selfGot)
	require.Len(t, siblingGot, 1)
	assert.Equal(t, domain.EventEntityUpdated, siblingGot[0].Type)
	assert.Equal(t, "origin-a", siblingGot[0].Origin)
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	_, err := bus.Subscribe("news-updates", "origin-b", func(ev domain.Event) {
		got = append(got, string(ev.Type))
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, "news-updates", domain.NewEntityUpdated("news", "origin-a", nil)))
	require.NoError(t, bus.Publish(ctx, "news-updates", domain.NewEntityDeleted("news", "origin-a", "id-1")))
	require.NoError(t, bus.Publish(ctx, "news-updates", domain.NewSyncCompleted("news", "origin-a", 2)))

	assert.Equal(t, []string{
		string(domain.EventEntityUpdated),
		string(domain.EventEntityDeleted),
		string(domain.EventSyncCompleted),
	}, got)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()

	var got int
	_, err := bus.Subscribe("achievements-updates", "origin-b", func(domain.Event) { got++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "news-updates",
		domain.NewEntityUpdated("news", "origin-a", nil)))

	assert.Zero(t, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var got int
	unsubscribe, err := bus.Subscribe("news-updates", "origin-b", func(domain.Event) { got++ })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount("news-updates"))

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, "news-updates", domain.NewEntityUpdated("news", "origin-a", nil)))
	require.Equal(t, 1, got)

	unsubscribe()
	assert.Zero(t, bus.SubscriberCount("news-updates"))

	require.NoError(t, bus.Publish(ctx, "news-updates", domain.NewEntityUpdated("news", "origin-a", nil)))
	assert.Equal(t, 1, got)
}

func TestBus_EmptyOriginReachesEveryone(t *testing.T) {
	bus := NewBus()

	var a, b int
	_, err := bus.Subscribe("news-updates", "origin-a", func(domain.Event) { a++ })
	require.NoError(t, err)
	_, err = bus.Subscribe("news-updates", "origin-b", func(domain.Event) { b++ })
	require.NoError(t, err)

	ev := domain.Event{Type: domain.EventSyncCompleted, Domain: "news"}
	require.NoError(t, bus.Publish(context.Background(), "news-updates", ev))

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
