package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/ytingest/model"
	"github.com/streamvault/ytingest/store"
)

func TestSavePageProgressPersistsItemsAndCursor(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	writer := NewCheckpointWriter(mem)

	playlist := &model.Playlist{ExternalID: "UU1", ChannelID: 1}
	require.NoError(t, mem.SavePlaylist(ctx, playlist))

	items := []*model.Video{
		{ExternalID: "v1", PlaylistID: playlist.ID, Title: "one", PublishedAt: ts(10), LiveState: model.LiveStateStandard},
		{ExternalID: "v2", PlaylistID: playlist.ID, Title: "two", PublishedAt: ts(11), LiveState: model.LiveStateStandard},
	}
	require.NoError(t, writer.SavePageProgress(ctx, playlist, items, strRef("next-page")))

	assert.NotNil(t, mem.VideoByExternalID("v1"))
	assert.NotNil(t, mem.VideoByExternalID("v2"))
	stored := mem.PlaylistByExternalID("UU1")
	require.NotNil(t, stored.LastPageToken)
	assert.Equal(t, "next-page", *stored.LastPageToken)
}

func TestSavePageProgressClearsCursorOnFinalPage(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	writer := NewCheckpointWriter(mem)

	playlist := &model.Playlist{ExternalID: "UU1", ChannelID: 1, LastPageToken: strRef("old")}
	require.NoError(t, mem.SavePlaylist(ctx, playlist))

	require.NoError(t, writer.SavePageProgress(ctx, playlist, nil, nil))
	stored := mem.PlaylistByExternalID("UU1")
	assert.Nil(t, stored.LastPageToken)
}

func TestSavePageProgressWithoutItems(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	writer := NewCheckpointWriter(mem)

	playlist := &model.Playlist{ExternalID: "UU1", ChannelID: 1}
	require.NoError(t, mem.SavePlaylist(ctx, playlist))

	require.NoError(t, writer.SavePageProgress(ctx, playlist, nil, strRef("tok")))
	stored := mem.PlaylistByExternalID("UU1")
	require.NotNil(t, stored.LastPageToken)
	assert.Equal(t, "tok", *stored.LastPageToken)
}
