package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homeID = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	blogID = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
)

var cdnStories = []map[string]any{
	{
		"id": 1, "uuid": homeID, "name": "Home", "slug": "home", "full_slug": "home",
		"content": map[string]any{"component": "page", "teaser": blogID},
	},
	{
		"id": 2, "uuid": blogID, "name": "Blog", "slug": "blog", "full_slug": "blog",
		"content": map[string]any{"component": "page"},
	},
}

// setupCDN points the CLI at a fake CDN backed by a sqlite file in a temp
// directory, so cached results survive between invocations.
func setupCDN(t *testing.T) *atomic.Int32 {
	t.Helper()
	var listCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/cdn/stories", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		w.Header().Set("Total", strconv.Itoa(len(cdnStories)))
		_ = json.NewEncoder(w).Encode(map[string]any{"stories": cdnStories})
	})
	mux.HandleFunc("/v2/cdn/stories/home", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"story": cdnStories[0]})
	})
	mux.HandleFunc("/v2/cdn/spaces/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"space": map[string]any{"language_codes": []string{"de", "fr"}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("SBDT_CONFIG", "")
	t.Setenv("SBDT_STORYBLOK_API_URL", srv.URL)
	t.Setenv("SBDT_STORYBLOK_TOKEN", "tok")
	t.Setenv("SBDT_STORAGE_ENGINE", "sqlite")
	t.Setenv("SBDT_DATA_PATH", t.TempDir())
	return &listCalls
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyze_Table(t *testing.T) {
	setupCDN(t)

	out, err := execute(t, "analyze", "home")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Home (home) "+homeID)
	assert.Contains(t, out, "analyzed 2 stories, computed")
	assert.Contains(t, out, "Outbound: 1 stories, 1 occurrences")
	assert.Contains(t, out, "Blog")
}

func TestAnalyze_SecondRunIsCached(t *testing.T) {
	calls := setupCDN(t)

	_, err := execute(t, "analyze", "home")
	require.NoError(t, err)
	out, err := execute(t, "analyze", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
	assert.Equal(t, int32(1), calls.Load())

	out, err = execute(t, "analyze", "home", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "computed")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnalyze_JSONAndExport(t *testing.T) {
	setupCDN(t)
	path := filepath.Join(t.TempDir(), "export.json")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", "home", "--json", "-o", path})
	require.NoError(t, cmd.Execute())

	var st struct {
		SubjectUUID string `json:"subjectUuid"`
		Phase       string `json:"phase"`
		Outbound    []struct {
			StoryUUID string `json:"storyUuid"`
		} `json:"outbound"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, homeID, st.SubjectUUID)
	assert.Equal(t, "done", st.Phase)
	require.Len(t, st.Outbound, 1)
	assert.Equal(t, blogID, st.Outbound[0].StoryUUID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"generatedAt"`)
}

func TestAnalyze_ExportRefusedWhenFilteredEmpty(t *testing.T) {
	setupCDN(t)
	path := filepath.Join(t.TempDir(), "export.json")

	_, err := execute(t, "analyze", "home", "-q", "no-such-thing", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to export")
	assert.NoFileExists(t, path)
}

func TestAnalyze_MissingToken(t *testing.T) {
	setupCDN(t)
	t.Setenv("SBDT_STORYBLOK_TOKEN", "")
	t.Setenv("STORYBLOK_ACCESS_TOKEN", "")

	_, err := execute(t, "analyze", "home")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token")
}

func TestStoriesAndLocales(t *testing.T) {
	calls := setupCDN(t)

	out, err := execute(t, "stories")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "Blog")

	_, err = execute(t, "stories")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	out, err = execute(t, "locales", "--json")
	require.NoError(t, err)
	var locales []string
	require.NoError(t, json.Unmarshal([]byte(out), &locales))
	assert.Equal(t, []string{"default", "de", "fr"}, locales)
}

func TestCacheClear(t *testing.T) {
	calls := setupCDN(t)

	_, err := execute(t, "analyze", "home")
	require.NoError(t, err)

	out, err := execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = execute(t, "analyze", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "computed")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheBackupAndRestore(t *testing.T) {
	calls := setupCDN(t)

	_, err := execute(t, "analyze", "home")
	require.NoError(t, err)

	out, err := execute(t, "cache", "backup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "snapshot written to")

	_, err = execute(t, "cache", "clear")
	require.NoError(t, err)

	out, err = execute(t, "cache", "restore")
	require.NoError(t, err, out)
	assert.Contains(t, out, "restored")

	out, err = execute(t, "analyze", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheBackup_RequiresSQLite(t *testing.T) {
	setupCDN(t)
	t.Setenv("SBDT_STORAGE_ENGINE", "memory")

	_, err := execute(t, "cache", "backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
