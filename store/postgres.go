package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamvault/ytingest/model"
)

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// upsert helpers serve pooled and transactional execution.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// FindAllChannels returns every tracked channel, oldest registration first.
func (p *Postgres) FindAllChannels(ctx context.Context) ([]*model.Channel, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, external_id, title FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("FindAllChannels: %w", err)
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		ch := &model.Channel{}
		if err := rows.Scan(&ch.ID, &ch.ExternalID, &ch.Title); err != nil {
			return nil, fmt.Errorf("FindAllChannels scan: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindAllChannels rows: %w", err)
	}
	return channels, nil
}

// FindChannelByExternalID returns the channel or nil when absent.
func (p *Postgres) FindChannelByExternalID(ctx context.Context, externalID string) (*model.Channel, error) {
	ch := &model.Channel{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, external_id, title FROM channels WHERE external_id = $1`,
		externalID,
	).Scan(&ch.ID, &ch.ExternalID, &ch.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindChannelByExternalID: %w", err)
	}
	return ch, nil
}

// SaveChannel inserts or updates a channel keyed on external_id.
func (p *Postgres) SaveChannel(ctx context.Context, channel *model.Channel) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (external_id, title) VALUES ($1, $2)
		 ON CONFLICT (external_id) DO UPDATE SET title = EXCLUDED.title
		 RETURNING id`,
		channel.ExternalID, channel.Title,
	).Scan(&channel.ID)
	if err != nil {
		return fmt.Errorf("SaveChannel: %w", err)
	}
	return nil
}

// FindPlaylistByExternalID returns the playlist or nil when absent.
func (p *Postgres) FindPlaylistByExternalID(ctx context.Context, externalID string) (*model.Playlist, error) {
	pl := &model.Playlist{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, external_id, title, channel_id, processed_at, last_page_token
		 FROM playlists WHERE external_id = $1`,
		externalID,
	).Scan(&pl.ID, &pl.ExternalID, &pl.Title, &pl.ChannelID, &pl.ProcessedAt, &pl.LastPageToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindPlaylistByExternalID: %w", err)
	}
	return pl, nil
}

// SavePlaylist inserts or updates a playlist keyed on external_id.
func (p *Postgres) SavePlaylist(ctx context.Context, playlist *model.Playlist) error {
	return savePlaylist(ctx, p.pool, playlist)
}

func savePlaylist(ctx context.Context, q rowQuerier, playlist *model.Playlist) error {
	err := q.QueryRow(ctx,
		`INSERT INTO playlists (external_id, title, channel_id, processed_at, last_page_token)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (external_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   channel_id = EXCLUDED.channel_id,
		   processed_at = EXCLUDED.processed_at,
		   last_page_token = EXCLUDED.last_page_token
		 RETURNING id`,
		playlist.ExternalID, playlist.Title, playlist.ChannelID, playlist.ProcessedAt, playlist.LastPageToken,
	).Scan(&playlist.ID)
	if err != nil {
		return fmt.Errorf("SavePlaylist: %w", err)
	}
	return nil
}

// FindVideosByExternalIDs returns the stored videos among the given IDs.
func (p *Postgres) FindVideosByExternalIDs(ctx context.Context, externalIDs []string) ([]*model.Video, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, external_id, playlist_id, title, description, kind,
		        published_at, live_state, scheduled_start_at, thumbnail_url
		 FROM videos WHERE external_id = ANY($1)`,
		externalIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("FindVideosByExternalIDs: %w", err)
	}
	defer rows.Close()

	var videos []*model.Video
	for rows.Next() {
		v := &model.Video{}
		var state string
		if err := rows.Scan(&v.ID, &v.ExternalID, &v.PlaylistID, &v.Title, &v.Description,
			&v.Kind, &v.PublishedAt, &state, &v.ScheduledStartAt, &v.ThumbnailURL); err != nil {
			return nil, fmt.Errorf("FindVideosByExternalIDs scan: %w", err)
		}
		v.LiveState = model.LiveBroadcastState(state)
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindVideosByExternalIDs rows: %w", err)
	}
	return videos, nil
}

// SaveVideos upserts a batch of videos keyed on external_id.
func (p *Postgres) SaveVideos(ctx context.Context, videos []*model.Video) error {
	return saveVideos(ctx, p.pool, videos)
}

func saveVideos(ctx context.Context, q rowQuerier, videos []*model.Video) error {
	for _, v := range videos {
		err := q.QueryRow(ctx,
			`INSERT INTO videos (external_id, playlist_id, title, description, kind,
			                     published_at, live_state, scheduled_start_at, thumbnail_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (external_id) DO UPDATE SET
			   title = EXCLUDED.title,
			   description = EXCLUDED.description,
			   live_state = EXCLUDED.live_state,
			   scheduled_start_at = EXCLUDED.scheduled_start_at,
			   thumbnail_url = EXCLUDED.thumbnail_url
			 RETURNING id`,
			v.ExternalID, v.PlaylistID, v.Title, v.Description, v.Kind,
			v.PublishedAt, string(v.LiveState), v.ScheduledStartAt, v.ThumbnailURL,
		).Scan(&v.ID)
		if err != nil {
			return fmt.Errorf("SaveVideos %s: %w", v.ExternalID, err)
		}
	}
	return nil
}

// CountVideosByState returns how many stored videos exist per live state.
func (p *Postgres) CountVideosByState(ctx context.Context) (map[model.LiveBroadcastState]int64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT live_state, COUNT(*) FROM videos GROUP BY live_state`)
	if err != nil {
		return nil, fmt.Errorf("CountVideosByState: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.LiveBroadcastState]int64)
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("CountVideosByState scan: %w", err)
		}
		counts[model.LiveBroadcastState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountVideosByState rows: %w", err)
	}
	return counts, nil
}

// QuotaByDay returns the day's usage record or nil when absent.
func (p *Postgres) QuotaByDay(ctx context.Context, day string) (*model.QuotaUsage, error) {
	var cost int64
	err := p.pool.QueryRow(ctx,
		`SELECT cost FROM quota_usage WHERE usage_date = $1::date`, day,
	).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("QuotaByDay: %w", err)
	}
	return &model.QuotaUsage{Day: day, Cost: cost}, nil
}

// AddQuota atomically increments the day's counter, creating the row on
// first use. The upsert serializes concurrent increments in the database.
func (p *Postgres) AddQuota(ctx context.Context, day string, cost int64) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO quota_usage (usage_date, cost) VALUES ($1::date, $2)
		 ON CONFLICT (usage_date) DO UPDATE SET cost = quota_usage.cost + EXCLUDED.cost`,
		day, cost,
	)
	if err != nil {
		return fmt.Errorf("AddQuota: %w", err)
	}
	return nil
}

// pgTx adapts a pgx transaction to the Tx contract.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) SaveVideos(ctx context.Context, videos []*model.Video) error {
	return saveVideos(ctx, t.tx, videos)
}

func (t *pgTx) SavePlaylist(ctx context.Context, playlist *model.Playlist) error {
	return savePlaylist(ctx, t.tx, playlist)
}

// WithTx runs fn in its own transaction, begun on a fresh pooled
// connection, so the commit is independent of any caller scope.
func (p *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
