package storyblok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/pkg/types"
)

func fixtureStories(from, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, map[string]any{
			"id":        i,
			"uuid":      fmt.Sprintf("%08d-0000-4000-8000-000000000000", i),
			"name":      fmt.Sprintf("Story %03d", i),
			"slug":      fmt.Sprintf("story-%d", i),
			"full_slug": fmt.Sprintf("blog/story-%d", i),
			"content":   map[string]any{"component": "page"},
		})
	}
	return out
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	base := []Option{WithBaseURL(ts.URL), WithRateLimit(0, 0)}
	return NewClient(append(base, opts...)...)
}

func writePage(w http.ResponseWriter, total int, stories []map[string]any) {
	if total > 0 {
		w.Header().Set("Total", strconv.Itoa(total))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"stories": stories})
}

func TestFetchAllStories_PaginatesUntilShortPage(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/v2/cdn/stories", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "draft", r.URL.Query().Get("version"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		switch r.URL.Query().Get("page") {
		case "1":
			writePage(w, 150, fixtureStories(0, 100))
		case "2":
			writePage(w, 150, fixtureStories(100, 50))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			writePage(w, 150, nil)
		}
	}))

	stories, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
	require.NoError(t, err)
	assert.Len(t, stories, 150)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, "Story 149", stories[149].Name)
}

func TestFetchAllStories_StopsWhenTotalReached(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.LessOrEqual(t, page, 2)
		writePage(w, 4, fixtureStories(int(n-1)*2, 2))
	}), WithPageSize(2))

	stories, err := client.FetchAllStories(context.Background(), "tok", types.VersionPublished)
	require.NoError(t, err)
	assert.Len(t, stories, 4)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchAllStories_ExcludesFolders(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := fixtureStories(0, 3)
		page[1]["is_folder"] = true
		writePage(w, 3, page)
	}))

	stories, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	for _, s := range stories {
		assert.False(t, s.IsFolder)
	}
}

func TestFetchAllStories_EmptySpace(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 0, nil)
	}))

	stories, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
	require.NoError(t, err)
	assert.NotNil(t, stories)
	assert.Empty(t, stories)
}

func TestFetchAllStories_FailedPageAbortsAggregation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writePage(w, 300, fixtureStories(0, 100))
	}))

	stories, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
	assert.Nil(t, stories)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Contains(t, err.Error(), "500")
}

func TestFetchAllStories_CancellationDiscardsPartialResults(t *testing.T) {
	reachedPage2 := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			close(reachedPage2)
			<-r.Context().Done()
			return
		}
		writePage(w, 200, fixtureStories(0, 100))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-reachedPage2
		cancel()
	}()

	stories, err := client.FetchAllStories(ctx, "tok", types.VersionDraft)
	assert.Nil(t, stories)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), WithCircuitBreaker(NewCircuitBreakerWithConfig(CircuitBreakerConfig{MaxFailures: 2})))

	for i := 0; i < 4; i++ {
		_, err := client.FetchAllStories(context.Background(), "bad", types.VersionDraft)
		var netErr *NetworkError
		require.True(t, errors.As(err, &netErr))
		assert.Equal(t, http.StatusUnauthorized, netErr.StatusCode)
	}
	assert.Equal(t, "closed", client.Breaker().State())
}

func TestCircuitBreaker_ServerErrorsTrip(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), WithCircuitBreaker(NewCircuitBreakerWithConfig(CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute})))

	for i := 0; i < 2; i++ {
		_, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
		require.Error(t, err)
	}
	_, err := client.FetchAllStories(context.Background(), "tok", types.VersionDraft)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, "open", client.Breaker().State())
	assert.Equal(t, uint64(3), client.Breaker().Metrics().TotalFailures)
}

func TestFetchStory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/cdn/stories/blog/hello":
			assert.Equal(t, "de", r.URL.Query().Get("language"))
			_ = json.NewEncoder(w).Encode(map[string]any{"story": fixtureStories(7, 1)[0]})
		case "/v2/cdn/stories/home":
			assert.False(t, r.URL.Query().Has("language"), "default locale sends no language")
			_ = json.NewEncoder(w).Encode(map[string]any{"story": fixtureStories(1, 1)[0]})
		case "/v2/cdn/stories/empty":
			_ = json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	story, err := client.FetchStory(ctx, "tok", types.VersionDraft, "/blog/hello", "de")
	require.NoError(t, err)
	assert.Equal(t, "Story 007", story.Name)
	assert.NotNil(t, story.Content)

	_, err = client.FetchStory(ctx, "tok", types.VersionDraft, "home", types.DefaultLocale)
	require.NoError(t, err)

	_, err = client.FetchStory(ctx, "tok", types.VersionDraft, "empty", "")
	assert.ErrorIs(t, err, ErrStoryNotFound)

	_, err = client.FetchStory(ctx, "tok", types.VersionDraft, "missing", "")
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "story", netErr.Resource)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
}

func TestListStorySummaries(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 0, []map[string]any{
			{"id": 1, "uuid": "u1", "name": "beta", "full_slug": "beta"},
			{"id": 2, "uuid": "u2", "name": "Alpha", "full_slug": "alpha"},
			{"id": 3, "uuid": "u3", "name": "Folder", "full_slug": "folder", "is_folder": true},
			{"id": 4, "uuid": "u4", "name": "", "slug": "", "full_slug": ""},
			{"id": 5, "uuid": "u5", "name": "Beta v2", "full_slug": "beta"},
			{"id": 6, "uuid": "u6", "name": "", "slug": "gamma", "full_slug": "x/gamma"},
		})
	}))

	list, err := client.ListStorySummaries(context.Background(), "tok", types.VersionDraft)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Beta v2", list[1].Name, "duplicate full slug keeps the last story")
	assert.Equal(t, int64(5), list[1].ID)
	assert.Equal(t, "gamma", list[2].Name)
	assert.Equal(t, "x/gamma", list[2].FullSlug)
}

func TestFetchLocales(t *testing.T) {
	var fail atomic.Bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/cdn/spaces/me", r.URL.Path)
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"space": map[string]any{"language_codes": []string{"de", "fr"}},
		})
	}))

	locales, err := client.FetchLocales(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "de", "fr"}, locales)

	fail.Store(true)
	locales, err = client.FetchLocales(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, locales)
}

func TestNetworkError_Temporary(t *testing.T) {
	assert.True(t, (&NetworkError{StatusCode: 503}).Temporary())
	assert.True(t, (&NetworkError{StatusCode: 429}).Temporary())
	assert.False(t, (&NetworkError{StatusCode: 404}).Temporary())
}
