package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchArtistDecodesResponse(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"remoteId":"ar1","name":"Miles Davis"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, func() string { return "tok-123" })
	artist, err := client.FetchArtist(context.Background(), "ar1")

	require.NoError(t, err)
	assert.Equal(t, "ar1", artist.RemoteID)
	assert.Equal(t, "Miles Davis", artist.Name)
	assert.Equal(t, "/api/artists/ar1", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestFetchArtistAlbumsSendsPagingParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"items":[{"remoteId":"al1"}],"total":42}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, nil)
	page, err := client.FetchArtistAlbums(context.Background(), "ar1", 10, 5)

	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "al1", page.Items[0].RemoteID)
}

func TestStatusCodesMapToTypedErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 is unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *UnauthorizedError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, http.StatusUnauthorized, authErr.Status)
			},
		},
		{
			name:   "403 is unauthorized",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *UnauthorizedError
				require.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "404 is not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var notFoundErr *NotFoundError
				require.ErrorAs(t, err, &notFoundErr)
			},
		},
		{
			name:   "500 is unknown",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var unknownErr *UnknownError
				require.ErrorAs(t, err, &unknownErr)
				assert.Equal(t, http.StatusInternalServerError, unknownErr.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL, nil)
			_, err := client.FetchAlbum(context.Background(), "al1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	// A closed server guarantees a transport-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewHTTPClient(srv.URL, nil)
	_, err := client.FetchTrack(context.Background(), "t1")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestMalformedBodyIsUnknownError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"remoteId":`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, nil)
	_, err := client.FetchArtist(context.Background(), "ar1")

	var unknownErr *UnknownError
	require.ErrorAs(t, err, &unknownErr)
}

func TestFetchDiscographyFillsArtistID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/artists/ar1/discography", r.URL.Path)
		w.Write([]byte(`{"albums":[{"remoteId":"al1"},{"remoteId":"al2"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, nil)
	payload, err := client.FetchDiscography(context.Background(), "ar1")

	require.NoError(t, err)
	assert.Equal(t, "ar1", payload.ArtistID, "artist id defaults from the request when the body omits it")
	assert.Len(t, payload.Albums, 2)
}

func TestNoTokenMeansNoAuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, func() string { return "" })
	_, err := client.FetchArtist(context.Background(), "ar1")
	require.NoError(t, err)
}
