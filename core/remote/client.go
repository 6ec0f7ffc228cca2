package remote

import (
	"context"

	"fmsync/model"
)

// AlbumPage is one server-ordered page of an artist's albums.
type AlbumPage struct {
	Items []model.Album `json:"items"`
	Total int           `json:"total"`
}

// DiscographyPayload is the full album list for an artist, in server order.
type DiscographyPayload struct {
	ArtistID string        `json:"artistId"`
	Albums   []model.Album `json:"albums"`
}

// Client fetches catalog entities from the server. All methods return the
// typed errors from this package (NetworkError, UnauthorizedError,
// NotFoundError, UnknownError) so callers can classify failures.
type Client interface {
	FetchArtist(ctx context.Context, id string) (*model.Artist, error)
	FetchAlbum(ctx context.Context, id string) (*model.Album, error)
	FetchTrack(ctx context.Context, id string) (*model.Track, error)
	FetchDiscography(ctx context.Context, artistID string) (*DiscographyPayload, error)

	// FetchArtistAlbums returns one page of the artist's albums starting
	// at offset, preserving server ordering.
	FetchArtistAlbums(ctx context.Context, artistID string, offset, limit int) (*AlbumPage, error)
}
