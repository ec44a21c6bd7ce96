package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// ---------------------------------------------------------------------------
// Reddit Story Source
// Fetches candidate stories from a subreddit's public hot listing, filtered
// to self posts with body text. No pagination cursor is kept — every call
// re-fetches the top 100 and picks one at random.
// ---------------------------------------------------------------------------

const redditFetchLimit = 100

// ErrNoStories is the single failure surfaced to callers. Provider errors,
// decode errors, and genuinely empty communities all collapse into it; the
// distinction only survives in the logs.
var ErrNoStories = errors.New("no text-based stories found")

type RedditService struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewRedditService(baseURL, userAgent string) *RedditService {
	return &RedditService{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// redditListing mirrors the subset of the listing payload we read.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title    string `json:"title"`
	SelfText string `json:"selftext"`
	IsSelf   bool   `json:"is_self"`
}

// FetchStory returns the (title, body) of one random self post from the
// community. Any provider failure is logged and reported as ErrNoStories.
func (s *RedditService) FetchStory(ctx context.Context, community string) (string, string, error) {
	listing, err := s.fetchListing(ctx, community)
	if err != nil {
		log.Printf("[Reddit] Error fetching r/%s: %v", community, err)
		return "", "", fmt.Errorf("%w in r/%s", ErrNoStories, community)
	}

	var stories []redditPost
	for _, child := range listing.Data.Children {
		if child.Data.IsSelf && child.Data.SelfText != "" {
			stories = append(stories, child.Data)
		}
	}

	if len(stories) == 0 {
		log.Printf("[Reddit] r/%s returned %d posts, none are self posts with text", community, len(listing.Data.Children))
		return "", "", fmt.Errorf("%w in r/%s", ErrNoStories, community)
	}

	selected := stories[rand.Intn(len(stories))]
	log.Printf("[Reddit] Selected story from r/%s: %q (%d chars, %d candidates)",
		community, selected.Title, len(selected.SelfText), len(stories))

	return selected.Title, selected.SelfText, nil
}

func (s *RedditService) fetchListing(ctx context.Context, community string) (*redditListing, error) {
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d",
		s.baseURL, url.PathEscape(community), redditFetchLimit)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listing returned status %d: %s", resp.StatusCode, string(body))
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	return &listing, nil
}
