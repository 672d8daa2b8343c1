// internal/clients/openlibrary_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultOpenLibraryURL = "https://openlibrary.org"

// Doc is one Open Library search hit.
type Doc struct {
	Title          string   `json:"title"`
	AuthorName     []string `json:"author_name"`
	RatingsAverage *float64 `json:"ratings_average"`
	RatingsCount   int      `json:"ratings_count"`
}

type OpenLibraryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenLibraryClient(baseURL string) *OpenLibraryClient {
	if baseURL == "" {
		baseURL = DefaultOpenLibraryURL
	}
	return &OpenLibraryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *OpenLibraryClient) SearchDocs(ctx context.Context, title, author string) ([]Doc, error) {
	params := url.Values{"title": {title}}
	if author != "" {
		params.Set("author", author)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library: unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Docs []Doc `json:"docs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("open library: decode response: %w", err)
	}
	return body.Docs, nil
}
