// Package store persists the catalog: channels, playlists, videos, and
// daily quota usage. The database is the sole source of truth; the
// pipeline keeps no state between runs outside the playlist row.
package store

import (
	"context"

	"github.com/streamvault/ytingest/model"
)

// Tx exposes the writes a page checkpoint groups into one unit of work.
type Tx interface {
	SaveVideos(ctx context.Context, videos []*model.Video) error
	SavePlaylist(ctx context.Context, playlist *model.Playlist) error
}

// Store is the persistence contract the pipeline depends on. Save methods
// are idempotent upserts keyed on the external identifier; they fill in the
// record's surrogate ID on insert.
type Store interface {
	FindAllChannels(ctx context.Context) ([]*model.Channel, error)
	FindChannelByExternalID(ctx context.Context, externalID string) (*model.Channel, error)
	SaveChannel(ctx context.Context, channel *model.Channel) error

	FindPlaylistByExternalID(ctx context.Context, externalID string) (*model.Playlist, error)
	SavePlaylist(ctx context.Context, playlist *model.Playlist) error

	FindVideosByExternalIDs(ctx context.Context, externalIDs []string) ([]*model.Video, error)
	SaveVideos(ctx context.Context, videos []*model.Video) error
	CountVideosByState(ctx context.Context) (map[model.LiveBroadcastState]int64, error)

	QuotaByDay(ctx context.Context, day string) (*model.QuotaUsage, error)
	AddQuota(ctx context.Context, day string, cost int64) error

	// WithTx runs fn inside a transaction of its own, isolated from any
	// surrounding operation: it commits before WithTx returns.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
