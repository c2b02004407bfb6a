package storyblok

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/scrypster/storyblok-devtools/pkg/types"
)

type listPage struct {
	Stories []types.Story `json:"stories"`
}

type storyBody struct {
	Story *types.Story `json:"story"`
}

type spaceBody struct {
	Space *struct {
		LanguageCodes []string `json:"language_codes"`
	} `json:"space"`
}

// FetchAllStories pages through the story listing and returns every
// non-folder story. Pagination stops at the first short page or once the
// server-reported total has been reached. Any failure, including
// cancellation, discards what was collected so far.
func (c *Client) FetchAllStories(ctx context.Context, token string, version types.Version) ([]types.Story, error) {
	var stories []types.Story
	err := c.paginate(ctx, token, version, func(page []types.Story) {
		for _, s := range page {
			if !s.IsFolder {
				stories = append(stories, s)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if stories == nil {
		stories = []types.Story{}
	}
	c.logger.Debug("dataset fetched", "stories", len(stories), "version", string(version))
	return stories, nil
}

// ListStorySummaries returns the stories offered in the story picker:
// folders and stories without a slug are dropped, duplicates by full slug
// keep the last one seen, and the list is sorted by name ignoring case.
func (c *Client) ListStorySummaries(ctx context.Context, token string, version types.Version) ([]types.StorySummary, error) {
	bySlug := map[string]types.StorySummary{}
	err := c.paginate(ctx, token, version, func(page []types.Story) {
		for _, s := range page {
			if s.IsFolder {
				continue
			}
			summary := types.StorySummary{
				ID:       s.ID,
				Name:     s.Name,
				UUID:     s.UUID,
				FullSlug: s.DisplaySlug(),
			}
			if summary.Name == "" {
				summary.Name = s.Slug
			}
			if summary.Name == "" {
				summary.Name = "Untitled Story"
			}
			if summary.FullSlug == "" {
				continue
			}
			bySlug[summary.FullSlug] = summary
		}
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]types.StorySummary, 0, len(bySlug))
	for _, s := range bySlug {
		summaries = append(summaries, s)
	}
	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(summaries, func(i, j int) bool {
		if cmp := col.CompareString(summaries[i].Name, summaries[j].Name); cmp != 0 {
			return cmp < 0
		}
		return summaries[i].FullSlug < summaries[j].FullSlug
	})
	return summaries, nil
}

func (c *Client) paginate(ctx context.Context, token string, version types.Version, onPage func([]types.Story)) error {
	seen := 0
	total := -1
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("token", token)
		query.Set("version", string(version))
		query.Set("per_page", strconv.Itoa(c.perPage))
		query.Set("page", strconv.Itoa(page))

		resp, err := c.get(ctx, "stories", "/v2/cdn/stories", query)
		if err != nil {
			return err
		}
		var body listPage
		if err := decode("stories", resp.body, &body); err != nil {
			return err
		}
		pagesFetched.Inc()

		onPage(body.Stories)
		seen += len(body.Stories)

		if n, err := strconv.Atoi(strings.TrimSpace(resp.header.Get("Total"))); err == nil && n > 0 {
			total = n
		}

		if len(body.Stories) < c.perPage {
			return nil
		}
		if total > 0 && seen >= total {
			return nil
		}
	}
}

// FetchStory loads one story by its full slug. The language parameter is
// omitted for the default locale.
func (c *Client) FetchStory(ctx context.Context, token string, version types.Version, slug, lang string) (*types.Story, error) {
	slug = strings.Trim(slug, "/")
	if slug == "" {
		return nil, ErrStoryNotFound
	}

	segments := strings.Split(slug, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	query := url.Values{}
	query.Set("version", string(version))
	query.Set("token", token)
	if lang != "" && lang != types.DefaultLocale {
		query.Set("language", lang)
	}

	resp, err := c.get(ctx, "story", "/v2/cdn/stories/"+strings.Join(segments, "/"), query)
	if err != nil {
		return nil, err
	}
	var body storyBody
	if err := decode("story", resp.body, &body); err != nil {
		return nil, err
	}
	if body.Story == nil {
		return nil, ErrStoryNotFound
	}
	return body.Story, nil
}

// FetchLocales returns "default" followed by the space's language codes.
// Failures are logged and degrade to just "default"; cancellation is
// returned so callers can tell it apart.
func (c *Client) FetchLocales(ctx context.Context, token string) ([]string, error) {
	locales := []string{types.DefaultLocale}

	query := url.Values{}
	query.Set("token", token)
	resp, err := c.get(ctx, "space", "/v2/cdn/spaces/me", query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.Warn("failed to fetch locales", "error", err)
		return locales, nil
	}

	var body spaceBody
	if err := decode("space", resp.body, &body); err != nil {
		c.logger.Warn("failed to fetch locales", "error", err)
		return locales, nil
	}
	if body.Space != nil {
		locales = append(locales, body.Space.LanguageCodes...)
	}
	return locales, nil
}
