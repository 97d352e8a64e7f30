package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const googleBooksVolumeResponse = `{
	"totalItems": 1,
	"items": [{
		"id": "wrOQLV6xB-wC",
		"volumeInfo": {
			"title": "Harry Potter and the Philosopher's Stone",
			"authors": ["J.K. Rowling"],
			"publisher": "Bloomsbury",
			"publishedDate": "1997-06-26",
			"description": "The boy who lived.",
			"pageCount": 223,
			"categories": ["Juvenile Fiction"],
			"industryIdentifiers": [
				{"type": "ISBN_10", "identifier": "0747532699"},
				{"type": "ISBN_13", "identifier": "9780747532699"}
			],
			"imageLinks": {
				"smallThumbnail": "https://example.com/small.jpg",
				"thumbnail": "https://example.com/thumb.jpg"
			}
		}
	}]
}`

func newGoogleBooksTestClient(t *testing.T, handler http.HandlerFunc) *GoogleBooksClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewGoogleBooksClient(ProviderConfig{Name: "google_books", BaseURL: server.URL})
	client.httpClient = server.Client()
	return client
}

func TestGoogleBooks_LookupISBN(t *testing.T) {
	setupCache(t)

	var query string
	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(googleBooksVolumeResponse))
	})

	book, err := client.LookupISBN(context.Background(), "9780747532699")
	require.NoError(t, err)
	require.NotNil(t, book)
	require.Equal(t, "isbn:9780747532699", query)

	// ISBN-13 preferred over the ISBN-10 identifier.
	require.Equal(t, "9780747532699", book.ISBN)
	require.Equal(t, "Harry Potter and the Philosopher's Stone", book.Title)
	require.Equal(t, []string{"J.K. Rowling"}, book.Authors)
	require.Equal(t, 223, book.PageCount)
	require.Equal(t, "https://example.com/thumb.jpg", book.Thumbnail)
}

func TestGoogleBooks_LookupISBN_NotFound(t *testing.T) {
	setupCache(t)

	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	book, err := client.LookupISBN(context.Background(), "9780747532699")
	require.NoError(t, err)
	require.Nil(t, book)
}

func TestGoogleBooks_LookupISBN_ServerError(t *testing.T) {
	setupCache(t)

	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.LookupISBN(context.Background(), "9780747532699")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
}

func TestGoogleBooks_LookupISBN_CachesResult(t *testing.T) {
	setupCache(t)

	requests := 0
	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(googleBooksVolumeResponse))
	})

	for i := 0; i < 2; i++ {
		book, err := client.LookupISBN(context.Background(), "9780747532699")
		require.NoError(t, err)
		require.NotNil(t, book)
	}
	require.Equal(t, 1, requests)
}

func TestGoogleBooks_SearchTitle(t *testing.T) {
	setupCache(t)

	var maxResults string
	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		maxResults = r.URL.Query().Get("maxResults")
		_, _ = w.Write([]byte(googleBooksVolumeResponse))
	})

	books, err := client.SearchTitle(context.Background(), "harry potter", 5)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "5", maxResults)
}

func TestGoogleBooks_SearchTitle_CapsLimit(t *testing.T) {
	setupCache(t)

	var maxResults string
	client := newGoogleBooksTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		maxResults = r.URL.Query().Get("maxResults")
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	_, err := client.SearchTitle(context.Background(), "harry potter", 100)
	require.NoError(t, err)
	require.Equal(t, "40", maxResults)
}

func TestGoogleBooks_APIKeyInQuery(t *testing.T) {
	setupCache(t)

	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer server.Close()

	client := NewGoogleBooksClient(ProviderConfig{Name: "google_books", BaseURL: server.URL, APIKey: "sekrit"})
	client.httpClient = server.Client()

	_, err := client.LookupISBN(context.Background(), "9780747532699")
	require.NoError(t, err)
	require.Equal(t, "sekrit", key)
}

func TestGoogleBooks_ParseVolume_FallsBackToSearchedISBN(t *testing.T) {
	client := NewGoogleBooksClient(ProviderConfig{Name: "google_books"})

	var item googleBooksItem
	item.VolumeInfo.Title = "Identifier-less Book"

	book := client.parseVolume(item, "9780306406157")
	require.NotNil(t, book)
	require.Equal(t, "9780306406157", book.ISBN)
}
