package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/store"
)

// CheckpointWriter persists one page's progress: the newly fetched items
// together with the next-page cursor, committed in a transaction of its
// own. A later quota exhaustion or crash in the same run can therefore
// neither roll back the items nor lose the cursor.
type CheckpointWriter struct {
	store store.Store
}

// NewCheckpointWriter creates a CheckpointWriter.
func NewCheckpointWriter(st store.Store) *CheckpointWriter {
	return &CheckpointWriter{store: st}
}

// SavePageProgress persists newItems (skipping the write when empty) and
// sets the playlist's cursor to nextPageToken (nil ends the pagination).
func (w *CheckpointWriter) SavePageProgress(ctx context.Context, playlist *model.Playlist, newItems []*model.Video, nextPageToken *string) error {
	playlist.LastPageToken = nextPageToken

	err := w.store.WithTx(ctx, func(tx store.Tx) error {
		if len(newItems) > 0 {
			if err := tx.SaveVideos(ctx, newItems); err != nil {
				return err
			}
		}
		return tx.SavePlaylist(ctx, playlist)
	})
	if err != nil {
		return fmt.Errorf("checkpoint page for playlist %s: %w", playlist.ExternalID, err)
	}

	log.Debug().
		Str("playlist_id", playlist.ExternalID).
		Int("new_items", len(newItems)).
		Bool("has_next_page", nextPageToken != nil).
		Msg("Page progress checkpointed")
	return nil
}
