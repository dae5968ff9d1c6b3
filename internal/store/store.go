/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store persists players, boards, submissions and the global game
// phase in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/photobingo/internal/bingo"
)

//go:embed sql/*.sql
var migrations embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type PhotoSubmission struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	CellID    string    `json:"cell_id"`
	PhotoURL  string    `json:"photo_url"`
	ClueText  string    `json:"clue_text"`
	ClueEmoji string    `json:"clue_emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type BingoSubmission struct {
	ID        int64              `json:"id"`
	UserID    string             `json:"user_id"`
	UserName  string             `json:"user_name"`
	Line      string             `json:"line"`
	PhotoURLs [bingo.Size]string `json:"photo_urls"`
	CreatedAt time.Time          `json:"created_at"`
}

// Counts are the live totals shown on the admin console.
type Counts struct {
	Users  int `json:"users"`
	Photos int `json:"photos"`
	Bingos int `json:"bingos"`
}

// Open opens (and creates if missing) the SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded sql/*.sql files in lexical order, recording
// each in _migrations so it runs once.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "sql/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}

	return nil
}

// CreateUser inserts a player with a fresh UUID.
func (s *Store) CreateUser(ctx context.Context, name string) (User, error) {
	u := User{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id=?`, id,
	).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUserWithBoard inserts a player and their board in one transaction,
// so a failed board never leaves a player behind.
func (s *Store) CreateUserWithBoard(ctx context.Context, name string, b bingo.Board) (User, error) {
	u := User{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	if err := insertCells(ctx, tx, u.ID, b); err != nil {
		return User{}, err
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}

	return u, nil
}

// SaveBoard replaces the stored board for userID.
func (s *Store) SaveBoard(ctx context.Context, userID string, b bingo.Board) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE user_id=?`, userID); err != nil {
		return fmt.Errorf("clear board: %w", err)
	}

	if err := insertCells(ctx, tx, userID, b); err != nil {
		return err
	}

	return tx.Commit()
}

func insertCells(ctx context.Context, tx *sql.Tx, userID string, b bingo.Board) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO boards (user_id, position, cell_id, name, description, emoji) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range b {
		if _, err := stmt.ExecContext(ctx, userID, i, c.ID, c.Name, c.Description, c.Emoji); err != nil {
			return fmt.Errorf("insert cell %s: %w", c.ID, err)
		}
	}

	return nil
}

// LoadBoard returns the stored board for userID in position order.
func (s *Store) LoadBoard(ctx context.Context, userID string) (bingo.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cell_id, name, description, emoji FROM boards WHERE user_id=? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	defer rows.Close()

	var b bingo.Board
	for rows.Next() {
		var c bingo.Cell
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Emoji); err != nil {
			return nil, err
		}
		b = append(b, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *Store) AddPhoto(ctx context.Context, p PhotoSubmission) (PhotoSubmission, error) {
	p.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO photo_submissions (user_id, cell_id, photo_url, clue_text, clue_emoji, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		p.UserID, p.CellID, p.PhotoURL, p.ClueText, p.ClueEmoji, p.CreatedAt,
	)
	if err != nil {
		return PhotoSubmission{}, fmt.Errorf("insert photo submission: %w", err)
	}

	p.ID, err = res.LastInsertId()
	return p, err
}

// Completion rebuilds a player's completion map. A re-upload for the same
// cell replaces the earlier photo.
func (s *Store) Completion(ctx context.Context, userID string) (bingo.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cell_id, photo_url FROM photo_submissions WHERE user_id=? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load completion: %w", err)
	}
	defer rows.Close()

	c := bingo.Completion{}
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		c[id] = url
	}
	return c, rows.Err()
}

func (s *Store) AddBingo(ctx context.Context, b BingoSubmission) (BingoSubmission, error) {
	b.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO bingo_submissions
            (user_id, user_name, line,
             photo_submission_1, photo_submission_2, photo_submission_3,
             photo_submission_4, photo_submission_5, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.UserName, b.Line,
		b.PhotoURLs[0], b.PhotoURLs[1], b.PhotoURLs[2], b.PhotoURLs[3], b.PhotoURLs[4],
		b.CreatedAt,
	)
	if err != nil {
		return BingoSubmission{}, fmt.Errorf("insert bingo submission: %w", err)
	}

	b.ID, err = res.LastInsertId()
	return b, err
}

// Phase reads the single game_state row.
func (s *Store) Phase(ctx context.Context) (bingo.Phase, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM game_state WHERE id=0`).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("game state row 0: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read game state: %w", err)
	}
	return bingo.ParsePhase(state)
}

func (s *Store) SetPhase(ctx context.Context, p bingo.Phase) error {
	if _, err := bingo.ParsePhase(string(p)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_state (id, state) VALUES (0, ?) ON CONFLICT(id) DO UPDATE SET state=excluded.state`,
		string(p),
	)
	if err != nil {
		return fmt.Errorf("update game state: %w", err)
	}
	return nil
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(1) FROM users),
            (SELECT COUNT(1) FROM photo_submissions),
            (SELECT COUNT(1) FROM bingo_submissions)`,
	).Scan(&c.Users, &c.Photos, &c.Bingos)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// UserStats returns how many photos and bingos a player has submitted.
func (s *Store) UserStats(ctx context.Context, userID string) (photos, bingos int, err error) {
	err = s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(1) FROM photo_submissions WHERE user_id=?),
            (SELECT COUNT(1) FROM bingo_submissions WHERE user_id=?)`,
		userID, userID,
	).Scan(&photos, &bingos)
	if err != nil {
		return 0, 0, fmt.Errorf("user stats: %w", err)
	}
	return photos, bingos, nil
}

// Reset returns the game to pending and deletes every player and submission.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`UPDATE game_state SET state='pending' WHERE id=0`,
		`DELETE FROM bingo_submissions`,
		`DELETE FROM photo_submissions`,
		`DELETE FROM boards`,
		`DELETE FROM users`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	return tx.Commit()
}
