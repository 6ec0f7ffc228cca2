package model

import "time"

// Artist mirrors a server-side artist record.
type Artist struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	RemoteID  string    `json:"remoteId" gorm:"uniqueIndex;size:64"`
	Name      string    `json:"name" gorm:"size:255"`
	Bio       string    `json:"bio" gorm:"type:text"`
	CoverURL  string    `json:"coverUrl" gorm:"size:767"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Album mirrors a server-side album record.
type Album struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	RemoteID       string    `json:"remoteId" gorm:"uniqueIndex;size:64"`
	ArtistRemoteID string    `json:"artistRemoteId" gorm:"index;size:64"`
	Title          string    `json:"title" gorm:"size:255"`
	ReleaseYear    int       `json:"releaseYear"`
	TrackCount     int       `json:"trackCount"`
	CoverURL       string    `json:"coverUrl" gorm:"size:767"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Track mirrors a server-side track record.
type Track struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	RemoteID      string    `json:"remoteId" gorm:"uniqueIndex;size:64"`
	AlbumRemoteID string    `json:"albumRemoteId" gorm:"index;size:64"`
	Title         string    `json:"title" gorm:"size:255"`
	Artist        string    `json:"artist" gorm:"size:255"`
	Duration      float32   `json:"duration"` // Duration in seconds
	Position      int       `json:"position"` // Position within the album
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Discography is the per-artist summary row written after a full
// discography fetch. The album rows themselves live in AlbumRow.
type Discography struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	ArtistRemoteID string    `json:"artistRemoteId" gorm:"uniqueIndex;size:64"`
	AlbumCount     int       `json:"albumCount"`
	SyncedAt       time.Time `json:"syncedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AlbumRow is one ordered row of the artist→albums relation. Position is
// the server-assigned order index; it is persisted so the local store can
// reproduce server ordering without re-sorting.
type AlbumRow struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	ArtistID      string    `json:"artistId" gorm:"index:idx_artist_position,priority:1;size:64"`
	AlbumRemoteID string    `json:"albumRemoteId" gorm:"size:64"`
	Position      int       `json:"position" gorm:"index:idx_artist_position,priority:2"`
	Title         string    `json:"title" gorm:"size:255"`
	ReleaseYear   int       `json:"releaseYear"`
	CoverURL      string    `json:"coverUrl" gorm:"size:767"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName keeps the relation table name explicit; "album_rows" would
// read like a table of albums rather than a relation.
func (AlbumRow) TableName() string {
	return "artist_albums"
}
