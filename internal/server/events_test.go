package server_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/internal/cache"
	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/notify"
	"github.com/scrypster/storyblok-devtools/internal/server"
	"github.com/scrypster/storyblok-devtools/internal/storage/memory"
	"github.com/scrypster/storyblok-devtools/pkg/types"
	"github.com/scrypster/storyblok-devtools/web/handlers"
)

type staticFetcher struct{ calls atomic.Int32 }

func (f *staticFetcher) FetchAllStories(context.Context, string, types.Version) ([]types.Story, error) {
	f.calls.Add(1)
	return []types.Story{{UUID: homeID, Name: "Home", FullSlug: "home"}}, nil
}

func TestEventHandler_RelationsUpdatedReloadsFromCache(t *testing.T) {
	store, err := memory.NewStore(8)
	require.NoError(t, err)
	relationsCache := cache.NewRelationsCache(store)

	fetcher := &staticFetcher{}
	analyzer := engine.NewAnalyzer(fetcher, relationsCache, engine.WithCredentials("tok", types.VersionDraft))
	defer analyzer.Close()

	ctx := context.Background()
	_, err = analyzer.SetSubject(ctx, types.Story{UUID: homeID, Name: "Home"}, 1)
	require.NoError(t, err)

	// Another process caches a newer analysis.
	require.NoError(t, relationsCache.Set(ctx, "tok", types.VersionDraft, homeID, cache.Record{
		Inbound: []types.RelationEntry{{StoryUUID: blogID, StoryName: "Blog", Occurrences: []types.Occurrence{{Path: "content.teaser"}}}},
	}))

	hub := handlers.NewWebSocketHub(nil)
	go hub.Run()
	defer hub.Stop()

	handle := server.EventHandler(ctx, analyzer, hub, nil)
	handle(notify.Event{Type: notify.EventRelationsUpdated, SubjectUUID: blogID})
	handle(notify.Event{Type: notify.EventRelationsUpdated, SubjectUUID: homeID})

	assert.Eventually(t, func() bool {
		st := analyzer.State()
		return st.FromCache && len(st.Inbound) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestEventHandler_CacheClearedBroadcasts(t *testing.T) {
	hub := handlers.NewWebSocketHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := &handlers.MockClient{SendChan: make(chan []byte, 1)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	analyzer := engine.NewAnalyzer(&staticFetcher{}, nil)
	defer analyzer.Close()

	server.EventHandler(context.Background(), analyzer, hub, nil)(notify.Event{Type: notify.EventCacheCleared})

	select {
	case msg := <-client.SendChan:
		assert.JSONEq(t, `{"type":"cache_cleared","data":null}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}
