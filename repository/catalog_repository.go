package repository

import (
	"context"
	"time"

	"fmsync/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository defines the local mirror of server-side catalog data.
// Entities are upserted by remote ID; the artist→albums relation keeps the
// server-assigned order index in each row.
type CatalogRepository interface {
	StoreArtist(ctx context.Context, artist *model.Artist) error
	StoreAlbum(ctx context.Context, album *model.Album) error
	StoreTrack(ctx context.Context, track *model.Track) error
	StoreDiscography(ctx context.Context, artistID string, albums []model.Album) error

	// ReplaceArtistAlbums deletes all relation rows for the artist and
	// inserts the given rows in one transaction.
	ReplaceArtistAlbums(ctx context.Context, artistID string, rows []model.AlbumRow) error

	// AppendArtistAlbums inserts additional relation rows for the artist.
	AppendArtistAlbums(ctx context.Context, artistID string, rows []model.AlbumRow) error

	// GetArtistAlbums returns the artist's relation rows ordered by position.
	GetArtistAlbums(ctx context.Context, artistID string) ([]model.AlbumRow, error)
}

// GormCatalogRepository is the GORM implementation of CatalogRepository.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GORM catalog repository.
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// upsertByRemoteID writes an entity, replacing any existing row with the
// same remote_id.
func (r *GormCatalogRepository) upsertByRemoteID(ctx context.Context, value interface{}, assigns []string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns(assigns),
	}).Create(value).Error
}

func (r *GormCatalogRepository) StoreArtist(ctx context.Context, artist *model.Artist) error {
	return r.upsertByRemoteID(ctx, artist, []string{"name", "bio", "cover_url", "updated_at"})
}

func (r *GormCatalogRepository) StoreAlbum(ctx context.Context, album *model.Album) error {
	return r.upsertByRemoteID(ctx, album, []string{"artist_remote_id", "title", "release_year", "track_count", "cover_url", "updated_at"})
}

func (r *GormCatalogRepository) StoreTrack(ctx context.Context, track *model.Track) error {
	return r.upsertByRemoteID(ctx, track, []string{"album_remote_id", "title", "artist", "duration", "position", "updated_at"})
}

// StoreDiscography replaces the artist's relation rows with the full album
// list and writes the per-artist summary row.
func (r *GormCatalogRepository) StoreDiscography(ctx context.Context, artistID string, albums []model.Album) error {
	rows := make([]model.AlbumRow, len(albums))
	for i, album := range albums {
		rows[i] = model.AlbumRow{
			ArtistID:      artistID,
			AlbumRemoteID: album.RemoteID,
			Position:      i,
			Title:         album.Title,
			ReleaseYear:   album.ReleaseYear,
			CoverURL:      album.CoverURL,
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("artist_id = ?", artistID).Delete(&model.AlbumRow{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		summary := model.Discography{
			ArtistRemoteID: artistID,
			AlbumCount:     len(albums),
			SyncedAt:       time.Now(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artist_remote_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"album_count", "synced_at", "updated_at"}),
		}).Create(&summary).Error
	})
}

func (r *GormCatalogRepository) ReplaceArtistAlbums(ctx context.Context, artistID string, rows []model.AlbumRow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("artist_id = ?", artistID).Delete(&model.AlbumRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *GormCatalogRepository) AppendArtistAlbums(ctx context.Context, artistID string, rows []model.AlbumRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *GormCatalogRepository) GetArtistAlbums(ctx context.Context, artistID string) ([]model.AlbumRow, error) {
	var rows []model.AlbumRow
	err := r.db.WithContext(ctx).
		Where("artist_id = ?", artistID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
