package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"feedsync/internal/model"
	"feedsync/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const feedColumns = `id, url, title, description, tags, ignored_words, update_interval, last_updated, is_active, created_at`

const itemColumns = `id, feed_id, title, link, description, content, author, pub_date, guid, categories,
	og_image, is_read, is_starred, is_hidden, created_at`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps pragmas applied and makes ":memory:" a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied migration version.
func (s *SQLite) SchemaVersion(_ context.Context) (int64, error) {
	return migrations.Version(s.db)
}

// GetFeed returns a single feed by its ID.
func (s *SQLite) GetFeed(ctx context.Context, id string) (*model.FeedSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %s: %w", id, ErrNotFound)
	}
	return feed, err
}

// ListFeeds returns every feed.
func (s *SQLite) ListFeeds(ctx context.Context) ([]model.FeedSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFeeds(rows)
}

// ListActiveFeeds returns the feeds that take part in updates.
func (s *SQLite) ListActiveFeeds(ctx context.Context) ([]model.FeedSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE is_active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query active feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFeeds(rows)
}

// UpsertFeed inserts the feed or overwrites its configuration. LastUpdated
// and CreatedAt of an existing row are preserved.
func (s *SQLite) UpsertFeed(ctx context.Context, feed *model.FeedSource) error {
	now := s.now().UTC().Format(timeLayout)
	feed.Tags = model.NormalizeTags(feed.Tags)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (`+feedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     url = excluded.url,
		     title = excluded.title,
		     description = excluded.description,
		     tags = excluded.tags,
		     ignored_words = excluded.ignored_words,
		     update_interval = excluded.update_interval,
		     is_active = excluded.is_active`,
		feed.ID, feed.URL, feed.Title, feed.Description, encodeList(feed.Tags), encodeList(feed.IgnoredWords),
		feed.UpdateInterval, boolToInt(feed.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}
	return nil
}

// SetLastUpdated advances the feed's last successful update time.
func (s *SQLite) SetLastUpdated(ctx context.Context, feedID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET last_updated = ? WHERE id = ?`, at.UTC().Format(timeLayout), feedID)
	if err != nil {
		return fmt.Errorf("set last updated: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed and all of its items.
func (s *SQLite) DeleteFeed(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE feed_id = ?`, id); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return tx.Commit()
}

// GUIDs returns the set of guids already stored for a feed.
func (s *SQLite) GUIDs(ctx context.Context, feedID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guid FROM items WHERE feed_id = ?`, feedID)
	if err != nil {
		return nil, fmt.Errorf("query guids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]struct{})
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("scan guid: %w", err)
		}
		known[guid] = struct{}{}
	}
	return known, rows.Err()
}

// InsertItems stores items in one transaction and returns how many were
// new. Items whose (feed, guid) already exists are skipped.
func (s *SQLite) InsertItems(ctx context.Context, items []model.FeedItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC().Format(timeLayout)
	inserted := 0
	for _, it := range items {
		id := it.ID
		if id == "" {
			id = model.ItemID(it.FeedID, it.GUID)
		}
		res, err := stmt.ExecContext(ctx,
			id, it.FeedID, it.Title, it.Link, it.Description, it.Content, it.Author,
			it.PubDate.UTC().Format(timeLayout), it.GUID, encodeList(it.Categories), it.OGImage,
			boolToInt(it.IsRead), boolToInt(it.IsStarred), boolToInt(it.IsHidden), now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert item %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit items: %w", err)
	}
	return inserted, nil
}

// ListFeedItems returns a feed's items newest first, ties broken by id.
// A non-nil after returns only the items that follow it in that order.
func (s *SQLite) ListFeedItems(ctx context.Context, feedID string, after *Cursor, limit int) ([]model.FeedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE feed_id = ?`
	args := []any{feedID}
	if after != nil {
		pub := after.PubDate.UTC().Format(timeLayout)
		query += ` AND (pub_date < ? OR (pub_date = ? AND id > ?))`
		args = append(args, pub, pub, after.ID)
	}
	query += ` ORDER BY pub_date DESC, id LIMIT ?`
	args = append(args, limitOrAll(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// ListRecentItems returns the newest items across all feeds.
func (s *SQLite) ListRecentItems(ctx context.Context, limit int) ([]model.FeedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY pub_date DESC, id LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// CountItems returns the number of stored items of a feed.
func (s *SQLite) CountItems(ctx context.Context, feedID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE feed_id = ?`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// AcquireLease takes the named lease for owner unless another owner holds
// an unexpired one.
func (s *SQLite) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO gate_leases (name, owner, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		 WHERE gate_leases.expires_at <= ?`,
		name, owner, now.Add(ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return n > 0, nil
}

// RenewLease extends a lease owner still holds. It reports false when the
// lease was lost.
func (s *SQLite) RenewLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE gate_leases SET expires_at = ? WHERE name = ? AND owner = ?`,
		s.now().Add(ttl).UnixNano(), name, owner,
	)
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return n > 0, nil
}

// ReleaseLease drops the lease if owner still holds it.
func (s *SQLite) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM gate_leases WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil || len(list) == 0 {
		return nil
	}
	return list
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFeed(row scannable) (*model.FeedSource, error) {
	var f model.FeedSource
	var tags, words string
	var isActive int
	var lastUpdated, created sql.NullString
	err := row.Scan(&f.ID, &f.URL, &f.Title, &f.Description, &tags, &words,
		&f.UpdateInterval, &lastUpdated, &isActive, &created)
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.Tags = decodeList(tags)
	f.IgnoredWords = decodeList(words)
	f.IsActive = isActive == 1
	if lastUpdated.Valid {
		t, _ := time.Parse(timeLayout, lastUpdated.String)
		f.LastUpdated = &t
	}
	if created.Valid {
		f.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &f, nil
}

func scanFeeds(rows *sql.Rows) ([]model.FeedSource, error) {
	var feeds []model.FeedSource
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

func scanItems(rows *sql.Rows) ([]model.FeedItem, error) {
	var items []model.FeedItem
	for rows.Next() {
		var it model.FeedItem
		var categories, pubDate, created string
		var isRead, isStarred, isHidden int
		err := rows.Scan(&it.ID, &it.FeedID, &it.Title, &it.Link, &it.Description, &it.Content, &it.Author,
			&pubDate, &it.GUID, &categories, &it.OGImage, &isRead, &isStarred, &isHidden, &created)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Categories = decodeList(categories)
		it.PubDate, _ = time.Parse(timeLayout, pubDate)
		it.CreatedAt, _ = time.Parse(timeLayout, created)
		it.IsRead = isRead == 1
		it.IsStarred = isStarred == 1
		it.IsHidden = isHidden == 1
		items = append(items, it)
	}
	return items, rows.Err()
}
