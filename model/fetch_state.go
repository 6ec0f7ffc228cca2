package model

import "time"

// ItemType identifies the kind of catalog entity a FetchState tracks.
type ItemType string

const (
	ItemTypeArtist      ItemType = "artist"
	ItemTypeAlbum       ItemType = "album"
	ItemTypeTrack       ItemType = "track"
	ItemTypeDiscography ItemType = "discography"
)

// FetchStatus is the lifecycle stage of a tracked fetch.
type FetchStatus string

const (
	FetchStatusIdle    FetchStatus = "idle"
	FetchStatusLoading FetchStatus = "loading"
	FetchStatusError   FetchStatus = "error"
)

// ErrorReason classifies why the last fetch attempt failed. It decides
// the retry delay, so the values are part of the retry contract.
type ErrorReason string

const (
	ErrorReasonNetwork  ErrorReason = "network"
	ErrorReasonClient   ErrorReason = "client"
	ErrorReasonNotFound ErrorReason = "not_found"
	ErrorReasonUnknown  ErrorReason = "unknown"
)

// FetchState is one row per remote entity the client still has to fetch.
// The absence of a row is the "synced" signal: rows are created when a
// fetch is requested and deleted once the entity has been stored locally.
type FetchState struct {
	ItemID        string      `json:"itemId"`
	ItemType      ItemType    `json:"itemType"`
	Status        FetchStatus `json:"status"`
	LastAttemptAt *time.Time  `json:"lastAttemptAt,omitempty"`
	TryNextAt     *time.Time  `json:"tryNextAt,omitempty"`
	ErrorReason   ErrorReason `json:"errorReason,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
