package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const hardcoverHitResponse = `{
	"data": {
		"search": {
			"results": {
				"hits": [{
					"document": {
						"title": "The Way of Kings",
						"author_names": ["Brandon Sanderson"],
						"description": "Epic fantasy.",
						"pages": 1007,
						"release_year": 2010,
						"isbn_13": "9780765326355",
						"isbn_10": "0765326353",
						"genres": ["Fantasy", "Epic", "High Fantasy", "Adventure"],
						"image": {"url": "https://assets.hardcover.app/cover.jpg"},
						"featured_series": {
							"position": 1,
							"series": {"name": "The Stormlight Archive"}
						}
					}
				}]
			}
		}
	}
}`

func newHardcoverTestClient(t *testing.T, handler http.HandlerFunc) *HardcoverClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewHardcoverClient(ProviderConfig{Name: "hardcover", BaseURL: server.URL, APIKey: "token123"})
	client.httpClient = server.Client()
	return client
}

func TestHardcover_LookupISBN(t *testing.T) {
	setupCache(t)

	var auth string
	var req hardcoverRequest
	client := newHardcoverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(hardcoverHitResponse))
	})

	book, err := client.LookupISBN(context.Background(), "9780765326355")
	require.NoError(t, err)
	require.NotNil(t, book)

	require.Equal(t, "Bearer token123", auth)
	require.Equal(t, "9780765326355", req.Variables["query"])

	require.Equal(t, "9780765326355", book.ISBN)
	require.Equal(t, "The Way of Kings", book.Title)
	require.Equal(t, []string{"Brandon Sanderson"}, book.Authors)
	require.Equal(t, 1007, book.PageCount)
	require.Equal(t, "2010", book.PublishedDate)
	// Genres are capped at three.
	require.Equal(t, []string{"Fantasy", "Epic", "High Fantasy"}, book.Categories)
	require.Equal(t, "https://assets.hardcover.app/cover.jpg", book.Thumbnail)
	require.Equal(t, "Stormlight Archive", book.SeriesName)
	require.Equal(t, "1", book.SeriesPosition)
}

func TestHardcover_LookupISBN_NotFound(t *testing.T) {
	setupCache(t)

	client := newHardcoverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"search": {"results": {"hits": []}}}}`))
	})

	book, err := client.LookupISBN(context.Background(), "9780765326355")
	require.NoError(t, err)
	require.Nil(t, book)
}

func TestHardcover_LookupISBN_GraphQLError(t *testing.T) {
	setupCache(t)

	client := newHardcoverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "field 'search' not found"}]}`))
	})

	_, err := client.LookupISBN(context.Background(), "9780765326355")
	require.Error(t, err)
	require.Contains(t, err.Error(), "field 'search' not found")
}

func TestHardcover_SearchTitle_CachesResult(t *testing.T) {
	setupCache(t)

	requests := 0
	client := newHardcoverTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(hardcoverHitResponse))
	})

	for i := 0; i < 2; i++ {
		books, err := client.SearchTitle(context.Background(), "way of kings", 5)
		require.NoError(t, err)
		require.Len(t, books, 1)
	}
	require.Equal(t, 1, requests)
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "Bearer abc", bearerToken("abc"))
	require.Equal(t, "Bearer abc", bearerToken("Bearer abc"))
}

func TestParseHardcoverDocument(t *testing.T) {
	t.Run("string image and string position", func(t *testing.T) {
		book := parseHardcoverDocument(hardcoverDocument{
			Title: "Dune Messiah",
			Image: "https://example.com/dune2.jpg",
			Featured: &struct {
				Position any `json:"position"`
				Series   struct {
					Name string `json:"name"`
				} `json:"series"`
			}{
				Position: "2",
				Series: struct {
					Name string `json:"name"`
				}{Name: "Dune Chronicles"},
			},
		}, "")
		require.NotNil(t, book)
		require.Equal(t, "https://example.com/dune2.jpg", book.Thumbnail)
		require.Equal(t, "Dune", book.SeriesName)
		require.Equal(t, "2", book.SeriesPosition)
	})

	t.Run("isbn10 fallback", func(t *testing.T) {
		book := parseHardcoverDocument(hardcoverDocument{Title: "Old Edition", ISBN10: "0306406152"}, "")
		require.NotNil(t, book)
		require.Equal(t, "0306406152", book.ISBN)
	})

	t.Run("searched isbn fallback", func(t *testing.T) {
		book := parseHardcoverDocument(hardcoverDocument{Title: "No Identifiers"}, "9780306406157")
		require.NotNil(t, book)
		require.Equal(t, "9780306406157", book.ISBN)
	})

	t.Run("untitled document dropped", func(t *testing.T) {
		require.Nil(t, parseHardcoverDocument(hardcoverDocument{ISBN13: "9780306406157"}, ""))
	})
}
