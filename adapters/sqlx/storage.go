package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sqlx "github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"brewduel/achievement"
	"brewduel/core"
	"brewduel/engine"
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for the given SQL driver
func DefaultConfig(driver string) Config {
	dsn := "postgres://localhost/brewduel?sslmode=disable"
	if driver == DriverMySQL {
		dsn = "root@tcp(localhost:3306)/brewduel?parseTime=true"
	}
	return Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Storage interface on a relational database.
// Queries are written with ? placeholders and passed through sqlx.Rebind, so
// the same statements serve both Postgres and MySQL. Multi-row writes run in
// transactions; the stats read-modify-write takes a row lock (SELECT FOR
// UPDATE) so concurrent events do not lose increments.
type Store struct {
	db     *sqlx.DB
	driver string
}

var _ engine.Storage = (*Store)(nil)

// New opens a database connection with the provided configuration
func New(config Config) (*Store, error) {
	db, err := sqlx.Connect(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	return &Store{db: db, driver: config.Driver}, nil
}

// NewWithDB creates a Store using an existing sqlx handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id VARCHAR(128) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			brewery VARCHAR(255) NOT NULL DEFAULT '',
			style VARCHAR(255) NOT NULL DEFAULT '',
			abv DOUBLE PRECISION NOT NULL DEFAULT 0,
			country VARCHAR(128) NOT NULL DEFAULT '',
			region VARCHAR(128) NOT NULL DEFAULT '',
			has_image BOOLEAN NOT NULL DEFAULT FALSE,
			rating INTEGER NOT NULL,
			duel_count BIGINT NOT NULL DEFAULT 0,
			tier VARCHAR(16) NOT NULL DEFAULT '',
			tier_locked BOOLEAN NOT NULL DEFAULT FALSE,
			updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS duels (
			id VARCHAR(64) PRIMARY KEY,
			item_a VARCHAR(128) NOT NULL,
			item_b VARCHAR(128) NOT NULL,
			winner VARCHAR(128) NOT NULL,
			rating_a_before INTEGER NOT NULL,
			rating_a_after INTEGER NOT NULL,
			rating_b_before INTEGER NOT NULL,
			rating_b_after INTEGER NOT NULL,
			at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS account_stats (
			account_id VARCHAR(128) PRIMARY KEY,
			xp BIGINT NOT NULL DEFAULT 0,
			items_tasted BIGINT NOT NULL DEFAULT 0,
			duels BIGINT NOT NULL DEFAULT 0,
			photos BIGINT NOT NULL DEFAULT 0,
			retastes BIGINT NOT NULL DEFAULT 0,
			updated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS account_styles (
			account_id VARCHAR(128) NOT NULL,
			style VARCHAR(255) NOT NULL,
			PRIMARY KEY (account_id, style)
		)`,
		`CREATE TABLE IF NOT EXISTS account_origins (
			account_id VARCHAR(128) NOT NULL,
			origin VARCHAR(128) NOT NULL,
			PRIMARY KEY (account_id, origin)
		)`,
		`CREATE TABLE IF NOT EXISTS account_tiers (
			account_id VARCHAR(128) NOT NULL,
			tier VARCHAR(16) NOT NULL,
			tasted BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, tier)
		)`,
		`CREATE TABLE IF NOT EXISTS tastings (
			account_id VARCHAR(128) NOT NULL,
			item_id VARCHAR(128) NOT NULL,
			first_tasted TIMESTAMP NOT NULL,
			repeats INTEGER NOT NULL DEFAULT 0,
			has_photo BOOLEAN NOT NULL DEFAULT FALSE,
			has_location BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (account_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS achievement_progress (
			account_id VARCHAR(128) NOT NULL,
			achievement_id VARCHAR(64) NOT NULL,
			progress BIGINT NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMP NULL,
			PRIMARY KEY (account_id, achievement_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

type itemRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Brewery    string    `db:"brewery"`
	Style      string    `db:"style"`
	ABV        float64   `db:"abv"`
	Country    string    `db:"country"`
	Region     string    `db:"region"`
	HasImage   bool      `db:"has_image"`
	Rating     int       `db:"rating"`
	DuelCount  int64     `db:"duel_count"`
	Tier       string    `db:"tier"`
	TierLocked bool      `db:"tier_locked"`
	Updated    time.Time `db:"updated"`
}

func (r itemRow) toItem() core.RatedItem {
	return core.RatedItem{
		ID: core.ItemID(r.ID),
		Attributes: core.ItemAttributes{
			Name: r.Name, Brewery: r.Brewery, Style: r.Style,
			ABV: r.ABV, Country: r.Country, Region: r.Region, HasImage: r.HasImage,
		},
		Rating:     r.Rating,
		DuelCount:  r.DuelCount,
		Tier:       core.Tier(r.Tier),
		TierLocked: r.TierLocked,
		Updated:    r.Updated,
	}
}

const selectItemColumns = `SELECT id, name, brewery, style, abv, country, region, has_image,
	rating, duel_count, tier, tier_locked, updated FROM items`

// GetItem retrieves a single catalog item by id.
func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.RatedItem, error) {
	var row itemRow
	query := s.db.Rebind(selectItemColumns + ` WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RatedItem{}, &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	if err != nil {
		return core.RatedItem{}, fmt.Errorf("failed to get item: %w", err)
	}
	return row.toItem(), nil
}

// PutItem inserts or updates a catalog item.
func (s *Store) PutItem(ctx context.Context, item core.RatedItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`), string(item.ID))
	if err != nil {
		return fmt.Errorf("failed to check item: %w", err)
	}

	a := item.Attributes
	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE items SET name = ?, brewery = ?,
			style = ?, abv = ?, country = ?, region = ?, has_image = ?, rating = ?,
			duel_count = ?, tier = ?, tier_locked = ?, updated = ? WHERE id = ?`),
			a.Name, a.Brewery, a.Style, a.ABV, a.Country, a.Region, a.HasImage,
			item.Rating, item.DuelCount, string(item.Tier), item.TierLocked,
			item.Updated, string(item.ID))
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO items (id, name, brewery,
			style, abv, country, region, has_image, rating, duel_count, tier,
			tier_locked, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			string(item.ID), a.Name, a.Brewery, a.Style, a.ABV, a.Country, a.Region,
			a.HasImage, item.Rating, item.DuelCount, string(item.Tier),
			item.TierLocked, item.Updated)
	}
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return tx.Commit()
}

// ListItems returns the full catalog.
func (s *Store) ListItems(ctx context.Context) ([]core.RatedItem, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, selectItemColumns+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	items := make([]core.RatedItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

// SetTier updates the tier fields of an item.
func (s *Store) SetTier(ctx context.Context, id core.ItemID, tier core.Tier, locked bool) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE items SET tier = ?, tier_locked = ?, updated = ? WHERE id = ?`),
		string(tier), locked, time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &engine.NotFoundError{Kind: "item", ID: string(id)}
	}
	return nil
}

// ApplyDuel writes both post-duel item states and the duel event in one
// transaction.
func (s *Store) ApplyDuel(ctx context.Context, ev core.DuelEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	update := tx.Rebind(`UPDATE items SET rating = ?, duel_count = duel_count + 1,
		updated = ? WHERE id = ?`)
	for _, side := range []struct {
		id     core.ItemID
		rating int
	}{{ev.ItemA, ev.RatingAAfter}, {ev.ItemB, ev.RatingBAfter}} {
		res, err := tx.ExecContext(ctx, update, side.rating, now, string(side.id))
		if err != nil {
			return fmt.Errorf("failed to apply duel rating: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &engine.NotFoundError{Kind: "item", ID: string(side.id)}
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO duels (id, item_a, item_b,
		winner, rating_a_before, rating_a_after, rating_b_before, rating_b_after, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, string(ev.ItemA), string(ev.ItemB), string(ev.Winner),
		ev.RatingABefore, ev.RatingAAfter, ev.RatingBBefore, ev.RatingBAfter, ev.At)
	if err != nil {
		return fmt.Errorf("failed to insert duel: %w", err)
	}
	return tx.Commit()
}

type duelRow struct {
	ID            string    `db:"id"`
	ItemA         string    `db:"item_a"`
	ItemB         string    `db:"item_b"`
	Winner        string    `db:"winner"`
	RatingABefore int       `db:"rating_a_before"`
	RatingAAfter  int       `db:"rating_a_after"`
	RatingBBefore int       `db:"rating_b_before"`
	RatingBAfter  int       `db:"rating_b_after"`
	At            time.Time `db:"at"`
}

// ListDuels returns duel events newest first, up to limit (0 means all).
func (s *Store) ListDuels(ctx context.Context, limit int) ([]core.DuelEvent, error) {
	query := `SELECT id, item_a, item_b, winner, rating_a_before, rating_a_after,
		rating_b_before, rating_b_after, at FROM duels ORDER BY at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}
	var rows []duelRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}
	events := make([]core.DuelEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, core.DuelEvent{
			ID: r.ID, ItemA: core.ItemID(r.ItemA), ItemB: core.ItemID(r.ItemB),
			Winner: core.ItemID(r.Winner), RatingABefore: r.RatingABefore,
			RatingAAfter: r.RatingAAfter, RatingBBefore: r.RatingBBefore,
			RatingBAfter: r.RatingBAfter, At: r.At,
		})
	}
	return events, nil
}

type statsRow struct {
	AccountID   string    `db:"account_id"`
	XP          int64     `db:"xp"`
	ItemsTasted int64     `db:"items_tasted"`
	Duels       int64     `db:"duels"`
	Photos      int64     `db:"photos"`
	Retastes    int64     `db:"retastes"`
	Updated     time.Time `db:"updated"`
}

// GetStats returns the account's stats snapshot, zero-valued for unknown
// accounts.
func (s *Store) GetStats(ctx context.Context, account core.AccountID) (core.AccountStats, error) {
	stats := core.AccountStats{
		AccountID: account,
		Styles:    make(map[string]struct{}),
		Origins:   make(map[string]struct{}),
		ByTier:    make(map[core.Tier]int64),
		Updated:   time.Now().UTC(),
	}

	var row statsRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT account_id, xp, items_tasted, duels, photos, retastes,
			updated FROM account_stats WHERE account_id = ?`), string(account))
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	stats.XP = row.XP
	stats.ItemsTasted = row.ItemsTasted
	stats.Duels = row.Duels
	stats.Photos = row.Photos
	stats.Retastes = row.Retastes
	stats.Updated = row.Updated

	var styles []string
	err = s.db.SelectContext(ctx, &styles,
		s.db.Rebind(`SELECT style FROM account_styles WHERE account_id = ?`), string(account))
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to get styles: %w", err)
	}
	for _, st := range styles {
		stats.Styles[st] = struct{}{}
	}

	var origins []string
	err = s.db.SelectContext(ctx, &origins,
		s.db.Rebind(`SELECT origin FROM account_origins WHERE account_id = ?`), string(account))
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to get origins: %w", err)
	}
	for _, o := range origins {
		stats.Origins[o] = struct{}{}
	}

	type tierRow struct {
		Tier   string `db:"tier"`
		Tasted int64  `db:"tasted"`
	}
	var tiers []tierRow
	err = s.db.SelectContext(ctx, &tiers,
		s.db.Rebind(`SELECT tier, tasted FROM account_tiers WHERE account_id = ?`), string(account))
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to get tier counters: %w", err)
	}
	for _, tr := range tiers {
		stats.ByTier[core.Tier(tr.Tier)] = tr.Tasted
	}
	return stats, nil
}

// ApplyStats performs the atomic read-modify-write of the account snapshot
// under a row lock.
func (s *Store) ApplyStats(ctx context.Context, account core.AccountID, delta engine.StatsDelta) (core.AccountStats, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var row statsRow
	err = tx.GetContext(ctx, &row,
		tx.Rebind(`SELECT account_id, xp, items_tasted, duels, photos, retastes,
			updated FROM account_stats WHERE account_id = ? FOR UPDATE`), string(account))
	fresh := errors.Is(err, sql.ErrNoRows)
	if err != nil && !fresh {
		return core.AccountStats{}, fmt.Errorf("failed to read stats: %w", err)
	}

	if row.XP, err = core.AddSafe(row.XP, delta.XP); err != nil {
		return core.AccountStats{}, err
	}
	if row.ItemsTasted, err = core.AddSafe(row.ItemsTasted, delta.ItemsTasted); err != nil {
		return core.AccountStats{}, err
	}
	if row.Duels, err = core.AddSafe(row.Duels, delta.Duels); err != nil {
		return core.AccountStats{}, err
	}
	if row.Photos, err = core.AddSafe(row.Photos, delta.Photos); err != nil {
		return core.AccountStats{}, err
	}
	if row.Retastes, err = core.AddSafe(row.Retastes, delta.Retastes); err != nil {
		return core.AccountStats{}, err
	}

	if fresh {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO account_stats (account_id,
			xp, items_tasted, duels, photos, retastes, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			string(account), row.XP, row.ItemsTasted, row.Duels, row.Photos,
			row.Retastes, now)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE account_stats SET xp = ?,
			items_tasted = ?, duels = ?, photos = ?, retastes = ?, updated = ?
			WHERE account_id = ?`),
			row.XP, row.ItemsTasted, row.Duels, row.Photos, row.Retastes, now,
			string(account))
	}
	if err != nil {
		return core.AccountStats{}, fmt.Errorf("failed to write stats: %w", err)
	}

	if delta.Style != "" {
		if err := s.insertDistinct(ctx, tx, "account_styles", "style", account, delta.Style); err != nil {
			return core.AccountStats{}, err
		}
	}
	if delta.Origin != "" {
		if err := s.insertDistinct(ctx, tx, "account_origins", "origin", account, delta.Origin); err != nil {
			return core.AccountStats{}, err
		}
	}
	if delta.Tier != core.TierUnset {
		if err := s.bumpTier(ctx, tx, account, delta.Tier); err != nil {
			return core.AccountStats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.AccountStats{}, err
	}
	return s.GetStats(ctx, account)
}

// insertDistinct adds a row to one of the distinct-set tables, tolerating
// duplicates. The conflict clause is the only dialect-specific SQL here.
func (s *Store) insertDistinct(ctx context.Context, tx *sqlx.Tx, table, column string, account core.AccountID, value string) error {
	query := `INSERT INTO ` + table + ` (account_id, ` + column + `) VALUES (?, ?)`
	if s.driver == DriverMySQL {
		query = `INSERT IGNORE INTO ` + table + ` (account_id, ` + column + `) VALUES (?, ?)`
	} else {
		query += ` ON CONFLICT DO NOTHING`
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), string(account), value); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) bumpTier(ctx context.Context, tx *sqlx.Tx, account core.AccountID, tier core.Tier) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE account_tiers SET tasted = tasted + 1 WHERE account_id = ? AND tier = ?`),
		string(account), string(tier))
	if err != nil {
		return fmt.Errorf("failed to bump tier counter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO account_tiers (account_id, tier, tasted) VALUES (?, ?, 1)`),
			string(account), string(tier))
		if err != nil {
			return fmt.Errorf("failed to insert tier counter: %w", err)
		}
	}
	return nil
}

type tastingRow struct {
	AccountID   string    `db:"account_id"`
	ItemID      string    `db:"item_id"`
	FirstTasted time.Time `db:"first_tasted"`
	Repeats     int       `db:"repeats"`
	HasPhoto    bool      `db:"has_photo"`
	HasLocation bool      `db:"has_location"`
}

// GetTasting retrieves the tasting record for an account/item pair.
func (s *Store) GetTasting(ctx context.Context, account core.AccountID, item core.ItemID) (core.TastingRecord, bool, error) {
	var row tastingRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT account_id, item_id, first_tasted, repeats, has_photo,
			has_location FROM tastings WHERE account_id = ? AND item_id = ?`),
		string(account), string(item))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TastingRecord{}, false, nil
	}
	if err != nil {
		return core.TastingRecord{}, false, fmt.Errorf("failed to get tasting: %w", err)
	}
	return core.TastingRecord{
		AccountID: core.AccountID(row.AccountID), ItemID: core.ItemID(row.ItemID),
		FirstTasted: row.FirstTasted, Repeats: row.Repeats,
		HasPhoto: row.HasPhoto, HasLocation: row.HasLocation,
	}, true, nil
}

// PutTasting inserts or updates a tasting record.
func (s *Store) PutTasting(ctx context.Context, rec core.TastingRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM tastings WHERE account_id = ? AND item_id = ?)`),
		string(rec.AccountID), string(rec.ItemID))
	if err != nil {
		return fmt.Errorf("failed to check tasting: %w", err)
	}

	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE tastings SET repeats = ?,
			has_photo = ?, has_location = ? WHERE account_id = ? AND item_id = ?`),
			rec.Repeats, rec.HasPhoto, rec.HasLocation,
			string(rec.AccountID), string(rec.ItemID))
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO tastings (account_id,
			item_id, first_tasted, repeats, has_photo, has_location)
			VALUES (?, ?, ?, ?, ?, ?)`),
			string(rec.AccountID), string(rec.ItemID), rec.FirstTasted,
			rec.Repeats, rec.HasPhoto, rec.HasLocation)
	}
	if err != nil {
		return fmt.Errorf("failed to put tasting: %w", err)
	}
	return tx.Commit()
}

type progressRow struct {
	AccountID     string       `db:"account_id"`
	AchievementID string       `db:"achievement_id"`
	Progress      int64        `db:"progress"`
	Completed     bool         `db:"completed"`
	CompletedAt   sql.NullTime `db:"completed_at"`
}

// GetProgress returns all achievement progress rows for an account.
func (s *Store) GetProgress(ctx context.Context, account core.AccountID) (map[string]achievement.Progress, error) {
	var rows []progressRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT account_id, achievement_id, progress, completed,
			completed_at FROM achievement_progress WHERE account_id = ?`), string(account))
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	out := make(map[string]achievement.Progress, len(rows))
	for _, r := range rows {
		p := achievement.Progress{
			AccountID:     core.AccountID(r.AccountID),
			AchievementID: r.AchievementID,
			Progress:      r.Progress,
			Completed:     r.Completed,
		}
		if r.CompletedAt.Valid {
			p.CompletedAt = r.CompletedAt.Time
		}
		out[r.AchievementID] = p
	}
	return out, nil
}

// PutProgress stores one progress row, rejecting writes that would unset a
// completed flag.
func (s *Store) PutProgress(ctx context.Context, p achievement.Progress) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var completed bool
	err = tx.GetContext(ctx, &completed,
		tx.Rebind(`SELECT completed FROM achievement_progress
			WHERE account_id = ? AND achievement_id = ? FOR UPDATE`),
		string(p.AccountID), p.AchievementID)
	fresh := errors.Is(err, sql.ErrNoRows)
	if err != nil && !fresh {
		return fmt.Errorf("failed to read progress: %w", err)
	}
	if !fresh && completed && !p.Completed {
		return errors.New("completed achievement cannot be reverted")
	}

	completedAt := sql.NullTime{Time: p.CompletedAt, Valid: !p.CompletedAt.IsZero()}
	if fresh {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO achievement_progress
			(account_id, achievement_id, progress, completed, completed_at)
			VALUES (?, ?, ?, ?, ?)`),
			string(p.AccountID), p.AchievementID, p.Progress, p.Completed, completedAt)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE achievement_progress SET
			progress = ?, completed = ?, completed_at = ?
			WHERE account_id = ? AND achievement_id = ?`),
			p.Progress, p.Completed, completedAt, string(p.AccountID), p.AchievementID)
	}
	if err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return tx.Commit()
}
