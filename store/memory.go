package store

import (
	"context"
	"sort"
	"sync"

	"github.com/streamvault/ytingest/model"
)

// Memory is an in-memory Store for tests and dry runs. It mirrors the
// Postgres upsert semantics (external-ID keyed, surrogate IDs assigned on
// insert). WithTx has no rollback: it exists so the pipeline's checkpoint
// path is exercised, not to provide isolation.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	channels  map[string]*model.Channel
	playlists map[string]*model.Playlist
	videos    map[string]*model.Video
	quota     map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		channels:  make(map[string]*model.Channel),
		playlists: make(map[string]*model.Playlist),
		videos:    make(map[string]*model.Video),
		quota:     make(map[string]int64),
	}
}

func (m *Memory) allocID() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) FindAllChannels(ctx context.Context) ([]*model.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channels := make([]*model.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		c := *ch
		channels = append(channels, &c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })
	return channels, nil
}

func (m *Memory) FindChannelByExternalID(ctx context.Context, externalID string) (*model.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[externalID]
	if !ok {
		return nil, nil
	}
	c := *ch
	return &c, nil
}

func (m *Memory) SaveChannel(ctx context.Context, channel *model.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.channels[channel.ExternalID]; ok {
		channel.ID = existing.ID
	} else {
		channel.ID = m.allocID()
	}
	c := *channel
	m.channels[channel.ExternalID] = &c
	return nil
}

func (m *Memory) FindPlaylistByExternalID(ctx context.Context, externalID string) (*model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.playlists[externalID]
	if !ok {
		return nil, nil
	}
	p := *pl
	return &p, nil
}

func (m *Memory) SavePlaylist(ctx context.Context, playlist *model.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePlaylistLocked(playlist)
}

func (m *Memory) savePlaylistLocked(playlist *model.Playlist) error {
	if existing, ok := m.playlists[playlist.ExternalID]; ok {
		playlist.ID = existing.ID
	} else {
		playlist.ID = m.allocID()
	}
	p := *playlist
	m.playlists[playlist.ExternalID] = &p
	return nil
}

func (m *Memory) FindVideosByExternalIDs(ctx context.Context, externalIDs []string) ([]*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var videos []*model.Video
	for _, id := range externalIDs {
		if v, ok := m.videos[id]; ok {
			copied := *v
			videos = append(videos, &copied)
		}
	}
	return videos, nil
}

func (m *Memory) SaveVideos(ctx context.Context, videos []*model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveVideosLocked(videos)
}

func (m *Memory) saveVideosLocked(videos []*model.Video) error {
	for _, v := range videos {
		if existing, ok := m.videos[v.ExternalID]; ok {
			v.ID = existing.ID
		} else {
			v.ID = m.allocID()
		}
		copied := *v
		m.videos[v.ExternalID] = &copied
	}
	return nil
}

func (m *Memory) CountVideosByState(ctx context.Context) (map[model.LiveBroadcastState]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.LiveBroadcastState]int64)
	for _, v := range m.videos {
		counts[v.LiveState]++
	}
	return counts, nil
}

func (m *Memory) QuotaByDay(ctx context.Context, day string) (*model.QuotaUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost, ok := m.quota[day]
	if !ok {
		return nil, nil
	}
	return &model.QuotaUsage{Day: day, Cost: cost}, nil
}

func (m *Memory) AddQuota(ctx context.Context, day string, cost int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota[day] += cost
	return nil
}

type memoryTx struct {
	m *Memory
}

func (t *memoryTx) SaveVideos(ctx context.Context, videos []*model.Video) error {
	return t.m.saveVideosLocked(videos)
}

func (t *memoryTx) SavePlaylist(ctx context.Context, playlist *model.Playlist) error {
	return t.m.savePlaylistLocked(playlist)
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryTx{m: m})
}

// VideoByExternalID returns a copy of the stored video, for assertions.
func (m *Memory) VideoByExternalID(externalID string) *model.Video {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[externalID]
	if !ok {
		return nil
	}
	copied := *v
	return &copied
}

// PlaylistByExternalID returns a copy of the stored playlist, for assertions.
func (m *Memory) PlaylistByExternalID(externalID string) *model.Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.playlists[externalID]
	if !ok {
		return nil
	}
	copied := *pl
	return &copied
}
