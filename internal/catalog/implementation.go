// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"shelfboard/internal/clients"
)

// VolumeSearcher is the Google Books side of the catalog.
type VolumeSearcher interface {
	SearchVolumes(ctx context.Context, query string) ([]clients.Volume, error)
}

// DocSearcher is the Open Library side of the catalog, used as the rating
// fallback.
type DocSearcher interface {
	SearchDocs(ctx context.Context, title, author string) ([]clients.Doc, error)
}

type Options struct {
	MaxResults        int
	RequestsPerMinute int
	// Consecutive upstream failures before the breaker opens.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
	Logger           *log.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxResults:        DefaultMaxResults,
		RequestsPerMinute: 60,
		FailureThreshold:  5,
		BreakerTimeout:    30 * time.Second,
	}
}

// service implements the Service interface.
type service struct {
	books       VolumeSearcher
	library     DocSearcher
	maxResults  int
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	tracer      trace.Tracer
	logger      *log.Logger
}

// NewService creates a catalog service. library may be nil, in which case
// reviews come from Google Books only.
func NewService(books VolumeSearcher, library DocSearcher, opts Options) Service {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	threshold := opts.FailureThreshold
	return &service{
		books:       books,
		library:     library,
		maxResults:  opts.MaxResults,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "catalog",
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				opts.Logger.Printf("catalog: breaker %s %s -> %s", name, from, to)
			},
		}),
		tracer: otel.Tracer("shelfboard/catalog"),
		logger: opts.Logger,
	}
}

// Search returns the first results for query. Identical concurrent searches
// share one upstream call.
func (s *service) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := s.tracer.Start(ctx, "catalog.search",
		trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	// The shared call outlives any one caller; the upstream client timeout
	// bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strings.ToLower(query), func() (interface{}, error) {
		return s.searchVolumes(shared, query)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	}
	span.SetAttributes(attribute.Bool("shared", res.Shared))
	if res.Err != nil {
		span.RecordError(res.Err)
		return nil, res.Err
	}

	volumes := res.Val.([]clients.Volume)
	if len(volumes) > s.maxResults {
		volumes = volumes[:s.maxResults]
	}
	results := make([]Result, 0, len(volumes))
	for _, vol := range volumes {
		results = append(results, Result{
			Title:      vol.Title,
			Author:     firstAuthor(vol.Authors),
			CoverRef:   vol.ImageLinks.Thumbnail,
			Categories: vol.Categories,
		})
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Reviews looks each entry up on Google Books and falls back to Open Library
// for entries without a rating. Entries whose lookups fail are left out.
func (s *service) Reviews(ctx context.Context, entries []Entry) (ReviewSummary, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.reviews",
		trace.WithAttributes(attribute.Int("entries", len(entries))))
	defer span.End()

	summary := ReviewSummary{Reviews: make([]Review, 0, len(entries))}
	var sum float64
	for _, e := range entries {
		review, err := s.review(ctx, e)
		if err != nil {
			s.logger.Printf("catalog: reviews for %q: %v", e.Title, err)
			continue
		}
		if review.Rating != nil {
			sum += *review.Rating
			summary.RatedCount++
		}
		summary.Reviews = append(summary.Reviews, review)
	}

	summary.AverageRating = "0.0"
	if summary.RatedCount > 0 {
		summary.AverageRating = fmt.Sprintf("%.1f", sum/float64(summary.RatedCount))
	}
	return summary, nil
}

func (s *service) review(ctx context.Context, e Entry) (Review, error) {
	review := Review{Title: e.Title, Description: NoDescription}

	volumes, err := s.searchVolumes(ctx, strings.TrimSpace(e.Title+" "+e.Author))
	if err != nil {
		return review, err
	}
	if len(volumes) > 0 {
		info := volumes[0]
		if info.AverageRating != nil {
			review.Rating = info.AverageRating
			review.RatingsCount = info.RatingsCount
		}
		if info.Description != "" {
			review.Description = truncate(info.Description, descriptionLimit) + "..."
		}
	}

	if review.Rating != nil || s.library == nil {
		return review, nil
	}

	docs, err := s.searchDocs(ctx, e.Title, e.Author)
	if err != nil {
		return review, err
	}
	if len(docs) > 0 && docs[0].RatingsAverage != nil {
		review.Rating = docs[0].RatingsAverage
		review.RatingsCount = docs[0].RatingsCount
	}
	return review, nil
}

func (s *service) searchVolumes(ctx context.Context, query string) ([]clients.Volume, error) {
	v, err := s.call(ctx, func() (interface{}, error) {
		return s.books.SearchVolumes(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]clients.Volume), nil
}

func (s *service) searchDocs(ctx context.Context, title, author string) ([]clients.Doc, error) {
	v, err := s.call(ctx, func() (interface{}, error) {
		return s.library.SearchDocs(ctx, title, author)
	})
	if err != nil {
		return nil, err
	}
	return v.([]clients.Doc), nil
}

// call paces and guards one upstream request.
func (s *service) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	v, err := s.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

func firstAuthor(authors []string) string {
	for _, a := range authors {
		if strings.TrimSpace(a) != "" {
			return a
		}
	}
	return UnknownAuthor
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
