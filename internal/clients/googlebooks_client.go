// internal/clients/googlebooks_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultGoogleBooksURL = "https://www.googleapis.com/books/v1"

// Volume is the subset of a Google Books volumeInfo the shelf uses.
type Volume struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	Categories    []string `json:"categories"`
	AverageRating *float64 `json:"averageRating"`
	RatingsCount  int      `json:"ratingsCount"`
	ImageLinks    struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type GoogleBooksClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGoogleBooksClient(baseURL, apiKey string) *GoogleBooksClient {
	if baseURL == "" {
		baseURL = DefaultGoogleBooksURL
	}
	return &GoogleBooksClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SearchVolumes runs a free-text volume search and returns volumes in the
// order Google Books ranks them.
func (c *GoogleBooksClient) SearchVolumes(ctx context.Context, query string) ([]Volume, error) {
	params := url.Values{"q": {query}}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books: unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			VolumeInfo Volume `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("google books: decode response: %w", err)
	}

	volumes := make([]Volume, 0, len(body.Items))
	for _, it := range body.Items {
		volumes = append(volumes, it.VolumeInfo)
	}
	return volumes, nil
}
