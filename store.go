package storefront

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/band"
	"github.com/eringen/storefront/views"
)

const timeLayout = time.RFC3339Nano

// OpenDB opens (or creates) the SQLite database at path and ensures the
// data directory exists. Foreign keys and the busy timeout are set per
// connection through the DSN.
func OpenDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// Write transactions take the lock up front so concurrent editors queue
	// on busy_timeout instead of failing on lock upgrade.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	// WAL lets the public site read while an editor writes; synchronous=NORMAL
	// is safe with WAL and avoids an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return db, nil
}

// Store persists page configs, bands and band snapshots.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewStore wraps db and ensures the schema exists.
func NewStore(db *sql.DB, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: logger.With().Str("component", "store").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS layout_config (
    page_id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    color_palette TEXT NOT NULL DEFAULT '{}',
    font_config TEXT NOT NULL DEFAULT '{}',
    global_styles TEXT NOT NULL DEFAULT '{}',
    updated_by TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS layout_bands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id TEXT NOT NULL REFERENCES layout_config(page_id) ON DELETE CASCADE,
    band_type TEXT NOT NULL,
    band_height INTEGER NOT NULL DEFAULT 1 CHECK (band_height BETWEEN 1 AND 4),
    band_order INTEGER NOT NULL DEFAULT 0,
    band_content TEXT NOT NULL DEFAULT '{}',
    updated_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_layout_bands_page ON layout_bands(page_id, band_order, id);
CREATE TABLE IF NOT EXISTS layout_band_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    bands TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- page configs ---

const pageColumns = `page_id, title, meta_description, color_palette, font_config, global_styles, updated_by, updated_at`

func scanPage(row interface{ Scan(...any) error }) (PageConfig, error) {
	var p PageConfig
	var palette, fonts, styles, updated string
	if err := row.Scan(&p.PageID, &p.Title, &p.MetaDescription, &palette, &fonts, &styles, &p.UpdatedBy, &updated); err != nil {
		return PageConfig{}, err
	}
	p.ColorPalette = map[string]string{}
	p.FontConfig = map[string]views.Font{}
	p.GlobalStyles = map[string]string{}
	// Corrupt token columns degrade to empty maps rather than failing the page.
	_ = json.Unmarshal([]byte(palette), &p.ColorPalette)
	_ = json.Unmarshal([]byte(fonts), &p.FontConfig)
	_ = json.Unmarshal([]byte(styles), &p.GlobalStyles)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

// GetPageConfig returns the config row of a page.
func (s *Store) GetPageConfig(ctx context.Context, pageID string) (PageConfig, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM layout_config WHERE page_id = ?`, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return PageConfig{}, apperr.NotFound("page %q not found", pageID)
	}
	return p, err
}

// ListPageConfigs returns every page except the global sentinel, by id.
func (s *Store) ListPageConfigs(ctx context.Context) ([]PageConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM layout_config WHERE page_id != ? ORDER BY page_id`, GlobalPageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []PageConfig
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SavePageConfig creates or replaces a page's title, description and tokens.
func (s *Store) SavePageConfig(ctx context.Context, actor Actor, p PageConfig) (PageConfig, error) {
	if err := requireActor(actor); err != nil {
		return PageConfig{}, err
	}
	palette, fonts, styles, err := encodeTokens(p.ColorPalette, p.FontConfig, p.GlobalStyles)
	if err != nil {
		return PageConfig{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO layout_config (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(page_id) DO UPDATE SET
    title = excluded.title,
    meta_description = excluded.meta_description,
    color_palette = excluded.color_palette,
    font_config = excluded.font_config,
    global_styles = excluded.global_styles,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at`,
		p.PageID, p.Title, p.MetaDescription, palette, fonts, styles, actor.Name, s.stamp())
	if err != nil {
		return PageConfig{}, err
	}
	return s.GetPageConfig(ctx, p.PageID)
}

// DeletePage removes a page config; its bands go with it.
func (s *Store) DeletePage(ctx context.Context, actor Actor, pageID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM layout_config WHERE page_id = ?`, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("page %q not found", pageID)
	}
	s.log.Info().Str("page", pageID).Str("actor", actor.Name).Msg("page deleted")
	return nil
}

// GetGlobalStyles returns the global token row, or an empty config when it
// has never been written.
func (s *Store) GetGlobalStyles(ctx context.Context) (PageConfig, error) {
	p, err := s.GetPageConfig(ctx, GlobalPageID)
	if apperr.Is(err, apperr.KindNotFound) {
		return PageConfig{
			PageID:       GlobalPageID,
			ColorPalette: map[string]string{},
			FontConfig:   map[string]views.Font{},
			GlobalStyles: map[string]string{},
		}, nil
	}
	return p, err
}

// SaveGlobalStyles writes the global tokens, creating the row on first use.
func (s *Store) SaveGlobalStyles(ctx context.Context, actor Actor, u StyleUpdate) (PageConfig, error) {
	if err := requireActor(actor); err != nil {
		return PageConfig{}, err
	}
	palette, fonts, styles, err := encodeTokens(u.ColorPalette, u.FontConfig, u.GlobalStyles)
	if err != nil {
		return PageConfig{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO layout_config (page_id, color_palette, font_config, global_styles, updated_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(page_id) DO UPDATE SET
    color_palette = excluded.color_palette,
    font_config = excluded.font_config,
    global_styles = excluded.global_styles,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at`,
		GlobalPageID, palette, fonts, styles, actor.Name, s.stamp())
	if err != nil {
		return PageConfig{}, err
	}
	return s.GetPageConfig(ctx, GlobalPageID)
}

func encodeTokens(palette map[string]string, fonts map[string]views.Font, styles map[string]string) (string, string, string, error) {
	enc := func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if string(b) == "null" {
			return "{}", nil
		}
		return string(b), nil
	}
	p, err := enc(palette)
	if err != nil {
		return "", "", "", err
	}
	f, err := enc(fonts)
	if err != nil {
		return "", "", "", err
	}
	st, err := enc(styles)
	if err != nil {
		return "", "", "", err
	}
	return p, f, st, nil
}

// --- bands ---

const bandColumns = `id, page_id, band_type, band_height, band_order, band_content, updated_by, created_at, updated_at`

func scanBand(row interface{ Scan(...any) error }) (band.Band, error) {
	var b band.Band
	var typ, content, created, updated string
	if err := row.Scan(&b.ID, &b.PageID, &typ, &b.Height, &b.Order, &content, &b.UpdatedBy, &created, &updated); err != nil {
		return band.Band{}, err
	}
	b.Type = band.Type(typ)
	b.Content = band.DecodeStored(typ, []byte(content))
	b.CreatedAt, _ = time.Parse(timeLayout, created)
	b.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return b, nil
}

func listBands(ctx context.Context, q querier, pageID string) ([]band.Band, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bandColumns+` FROM layout_bands WHERE page_id = ? ORDER BY band_order, id`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bands := []band.Band{}
	for rows.Next() {
		b, err := scanBand(rows)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

// ListBands returns a page's bands ordered by band_order, ties by id.
// Content that no longer decodes comes back as band.Invalid.
func (s *Store) ListBands(ctx context.Context, pageID string) ([]band.Band, error) {
	return listBands(ctx, s.db, pageID)
}

// GetBand returns one band of a page.
func (s *Store) GetBand(ctx context.Context, pageID string, id int64) (band.Band, error) {
	b, err := scanBand(s.db.QueryRowContext(ctx, `SELECT `+bandColumns+` FROM layout_bands WHERE id = ? AND page_id = ?`, id, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return band.Band{}, apperr.NotFound("band %d not found on page %q", id, pageID)
	}
	return b, err
}

// prepare canonicalizes, clamps and encodes a band for writing.
func (s *Store) prepare(b *band.Band) (string, error) {
	if b.Content == nil {
		return "", apperr.Validation("band_content is required")
	}
	if _, err := band.ParseType(string(b.Content.Type())); err != nil {
		return "", err
	}
	b.Type = b.Content.Type()
	if h := band.ClampHeight(b.Height); h != b.Height {
		s.log.Warn().Int("requested", b.Height).Int("stored", h).Str("page", b.PageID).
			Msg("band_height out of range, clamped")
		b.Height = h
	}
	b.Content = band.Canonical(b.Content)
	raw, err := band.Encode(b.Content)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// CreateBand inserts a band, creating its page config on first use.
func (s *Store) CreateBand(ctx context.Context, actor Actor, b band.Band) (band.Band, error) {
	if err := requireActor(actor); err != nil {
		return band.Band{}, err
	}
	content, err := s.prepare(&b)
	if err != nil {
		return band.Band{}, err
	}
	now := s.stamp()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO layout_config (page_id, updated_by, updated_at) VALUES (?, ?, ?)`,
			b.PageID, actor.Name, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO layout_bands (page_id, band_type, band_height, band_order, band_content, updated_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.PageID, string(b.Type), b.Height, b.Order, content, actor.Name, now, now)
		if err != nil {
			return err
		}
		b.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return band.Band{}, err
	}
	s.log.Info().Int64("band", b.ID).Str("page", b.PageID).Str("type", string(b.Type)).Str("actor", actor.Name).Msg("band created")
	return s.GetBand(ctx, b.PageID, b.ID)
}

// UpdateBand replaces a band's type, height, order and content.
// Concurrent edits are last-writer-wins.
func (s *Store) UpdateBand(ctx context.Context, actor Actor, b band.Band) (band.Band, error) {
	if err := requireActor(actor); err != nil {
		return band.Band{}, err
	}
	content, err := s.prepare(&b)
	if err != nil {
		return band.Band{}, err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE layout_bands SET band_type = ?, band_height = ?, band_order = ?, band_content = ?, updated_by = ?, updated_at = ?
WHERE id = ? AND page_id = ?`,
		string(b.Type), b.Height, b.Order, content, actor.Name, s.stamp(), b.ID, b.PageID)
	if err != nil {
		return band.Band{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return band.Band{}, apperr.NotFound("band %d not found on page %q", b.ID, b.PageID)
	}
	return s.GetBand(ctx, b.PageID, b.ID)
}

// DeleteBand removes a band. Its image files stay on disk until an orphan
// sweep removes them.
func (s *Store) DeleteBand(ctx context.Context, actor Actor, pageID string, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM layout_bands WHERE id = ? AND page_id = ?`, id, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("band %d not found on page %q", id, pageID)
	}
	s.log.Info().Int64("band", id).Str("page", pageID).Str("actor", actor.Name).Msg("band deleted")
	return nil
}

// ReorderBands applies every order change in one transaction. If any id
// is not a band of the page nothing is changed. A snapshot of the previous
// order is committed with the change.
func (s *Store) ReorderBands(ctx context.Context, actor Actor, pageID string, orders map[int64]int) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if len(orders) == 0 {
		return apperr.Validation("no band orders given")
	}
	ids := make([]int64, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := s.stamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.snapshot(ctx, tx, actor, pageID, "before reorder"); err != nil {
			return err
		}
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `UPDATE layout_bands SET band_order = ?, updated_by = ?, updated_at = ? WHERE id = ? AND page_id = ?`,
				orders[id], actor.Name, now, id, pageID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return apperr.NotFound("band %d not found on page %q", id, pageID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("page", pageID).Int("bands", len(ids)).Str("actor", actor.Name).Msg("bands reordered")
	return nil
}

// --- snapshots ---

// snapshotBand is the persisted form of a band inside a snapshot.
type snapshotBand struct {
	ID      int64           `json:"id"`
	Type    string          `json:"band_type"`
	Height  int             `json:"band_height"`
	Order   int             `json:"band_order"`
	Content json.RawMessage `json:"band_content"`
}

func (s *Store) snapshot(ctx context.Context, q querier, actor Actor, pageID, reason string) (Snapshot, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, band_type, band_height, band_order, band_content FROM layout_bands WHERE page_id = ? ORDER BY band_order, id`, pageID)
	if err != nil {
		return Snapshot{}, err
	}
	saved := []snapshotBand{}
	for rows.Next() {
		var sb snapshotBand
		var content string
		if err := rows.Scan(&sb.ID, &sb.Type, &sb.Height, &sb.Order, &content); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		sb.Content = json.RawMessage(content)
		if !json.Valid(sb.Content) {
			sb.Content = json.RawMessage(`{}`)
		}
		saved = append(saved, sb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now()
	res, err := q.ExecContext(ctx, `INSERT INTO layout_band_snapshots (page_id, reason, bands, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		pageID, reason, string(data), actor.Name, now.Format(timeLayout))
	if err != nil {
		return Snapshot{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, PageID: pageID, Reason: reason, BandCount: len(saved), CreatedBy: actor.Name, CreatedAt: now}, nil
}

// SnapshotBands saves a copy of every band on a page.
func (s *Store) SnapshotBands(ctx context.Context, actor Actor, pageID, reason string) (Snapshot, error) {
	if err := requireActor(actor); err != nil {
		return Snapshot{}, err
	}
	if reason == "" {
		reason = "manual"
	}
	return s.snapshot(ctx, s.db, actor, pageID, reason)
}

// ListSnapshots returns a page's snapshots, newest first, without bands.
func (s *Store) ListSnapshots(ctx context.Context, pageID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, page_id, reason, bands, created_by, created_at FROM layout_band_snapshots WHERE page_id = ? ORDER BY id DESC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, _, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row interface{ Scan(...any) error }) (Snapshot, []snapshotBand, error) {
	var snap Snapshot
	var data, created string
	if err := row.Scan(&snap.ID, &snap.PageID, &snap.Reason, &data, &snap.CreatedBy, &created); err != nil {
		return Snapshot{}, nil, err
	}
	var saved []snapshotBand
	if err := json.Unmarshal([]byte(data), &saved); err != nil {
		return Snapshot{}, nil, fmt.Errorf("snapshot %d: %w", snap.ID, err)
	}
	snap.BandCount = len(saved)
	snap.CreatedAt, _ = time.Parse(timeLayout, created)
	return snap, saved, nil
}

// RestoreSnapshot replaces a page's bands with the snapshot's. The current
// bands are snapshotted first, so a restore can itself be undone.
func (s *Store) RestoreSnapshot(ctx context.Context, actor Actor, id int64) (Snapshot, error) {
	if err := requireActor(actor); err != nil {
		return Snapshot{}, err
	}
	var restored Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		snap, saved, err := scanSnapshot(tx.QueryRowContext(ctx,
			`SELECT id, page_id, reason, bands, created_by, created_at FROM layout_band_snapshots WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("snapshot %d not found", id)
		}
		if err != nil {
			return err
		}
		now := s.stamp()
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO layout_config (page_id, updated_by, updated_at) VALUES (?, ?, ?)`,
			snap.PageID, actor.Name, now); err != nil {
			return err
		}
		if _, err := s.snapshot(ctx, tx, actor, snap.PageID, fmt.Sprintf("before restore of snapshot %d", id)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM layout_bands WHERE page_id = ?`, snap.PageID); err != nil {
			return err
		}
		// AUTOINCREMENT never reuses ids, so the original ids are free.
		for _, sb := range saved {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO layout_bands (id, page_id, band_type, band_height, band_order, band_content, updated_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sb.ID, snap.PageID, sb.Type, band.ClampHeight(sb.Height), sb.Order, string(sb.Content), actor.Name, now, now); err != nil {
				return err
			}
		}
		restored = snap
		restored.Bands, err = listBands(ctx, tx, snap.PageID)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.log.Info().Int64("snapshot", id).Str("page", restored.PageID).Str("actor", actor.Name).Msg("snapshot restored")
	return restored, nil
}

// ReferencedImages returns every local path any band points at, including
// bands that only live on in a snapshot and could be restored.
func (s *Store) ReferencedImages(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	collect := func(typ string, content []byte) {
		for _, p := range band.References(band.DecodeStored(typ, content)) {
			seen[p] = struct{}{}
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT band_type, band_content FROM layout_bands`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var typ, content string
		if err := rows.Scan(&typ, &content); err != nil {
			rows.Close()
			return nil, err
		}
		collect(typ, []byte(content))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, bands FROM layout_band_snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var saved []snapshotBand
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			s.log.Warn().Int64("snapshot", id).Err(err).Msg("unreadable snapshot skipped in image references")
			continue
		}
		for _, sb := range saved {
			collect(sb.Type, sb.Content)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) stamp() string {
	return s.now().Format(timeLayout)
}
