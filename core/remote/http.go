package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fmsync/logger"
	"fmsync/model"
)

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      func() string // Returns the current access token, or ""
}

// NewHTTPClient creates a new catalog API client.
func NewHTTPClient(baseURL string, token func() string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		token: token,
	}
}

// SetTimeout sets the request timeout.
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

func (c *HTTPClient) FetchArtist(ctx context.Context, id string) (*model.Artist, error) {
	var artist model.Artist
	path := fmt.Sprintf("/api/artists/%s", url.PathEscape(id))
	if err := c.getJSON(ctx, path, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

func (c *HTTPClient) FetchAlbum(ctx context.Context, id string) (*model.Album, error) {
	var album model.Album
	path := fmt.Sprintf("/api/albums/%s", url.PathEscape(id))
	if err := c.getJSON(ctx, path, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

func (c *HTTPClient) FetchTrack(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	path := fmt.Sprintf("/api/tracks/%s", url.PathEscape(id))
	if err := c.getJSON(ctx, path, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

func (c *HTTPClient) FetchDiscography(ctx context.Context, artistID string) (*DiscographyPayload, error) {
	var payload DiscographyPayload
	path := fmt.Sprintf("/api/artists/%s/discography", url.PathEscape(artistID))
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	if payload.ArtistID == "" {
		payload.ArtistID = artistID
	}
	return &payload, nil
}

func (c *HTTPClient) FetchArtistAlbums(ctx context.Context, artistID string, offset, limit int) (*AlbumPage, error) {
	var page AlbumPage
	path := fmt.Sprintf("/api/artists/%s/albums?offset=%d&limit=%d", url.PathEscape(artistID), offset, limit)
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// getJSON issues a GET request and decodes the JSON body into dest,
// mapping failures to this package's typed errors.
func (c *HTTPClient) getJSON(ctx context.Context, path string, dest interface{}) error {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &UnknownError{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &UnauthorizedError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: path}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("Catalog API returned unexpected status",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode))
		return &UnknownError{Status: resp.StatusCode, Message: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &UnknownError{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}

	return nil
}
