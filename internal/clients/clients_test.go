package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleBooksClient_SearchVolumes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "dune herbert", r.URL.Query().Get("q"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.Write([]byte(`{"items":[
			{"volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"averageRating":4.5,"ratingsCount":10,
			 "categories":["Fiction"],"imageLinks":{"thumbnail":"http://img/dune"}}},
			{"volumeInfo":{"title":"Dune Messiah"}}
		]}`))
	}))
	defer srv.Close()

	c := NewGoogleBooksClient(srv.URL, "k")
	volumes, err := c.SearchVolumes(context.Background(), "dune herbert")
	require.NoError(t, err)
	require.Len(t, volumes, 2)

	assert.Equal(t, "Dune", volumes[0].Title)
	assert.Equal(t, []string{"Frank Herbert"}, volumes[0].Authors)
	require.NotNil(t, volumes[0].AverageRating)
	assert.Equal(t, 4.5, *volumes[0].AverageRating)
	assert.Equal(t, "http://img/dune", volumes[0].ImageLinks.Thumbnail)
	assert.Nil(t, volumes[1].AverageRating)
	assert.Empty(t, volumes[1].Authors)
}

func TestGoogleBooksClient_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalItems":0}`))
	}))
	defer srv.Close()

	volumes, err := NewGoogleBooksClient(srv.URL, "").SearchVolumes(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestGoogleBooksClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleBooksClient(srv.URL, "").SearchVolumes(context.Background(), "x")
	assert.ErrorContains(t, err, "429")
}

func TestOpenLibraryClient_SearchDocs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "Emma", r.URL.Query().Get("title"))
		assert.Equal(t, "Jane Austen", r.URL.Query().Get("author"))
		w.Write([]byte(`{"docs":[{"title":"Emma","author_name":["Jane Austen"],"ratings_average":3.9,"ratings_count":120}]}`))
	}))
	defer srv.Close()

	docs, err := NewOpenLibraryClient(srv.URL).SearchDocs(context.Background(), "Emma", "Jane Austen")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].RatingsAverage)
	assert.Equal(t, 3.9, *docs[0].RatingsAverage)
	assert.Equal(t, 120, docs[0].RatingsCount)
}
