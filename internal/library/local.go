package library

import (
	"context"
	"database/sql"
	"fmt"

	"gamevault/pkg/models"
)

// LocalStore is the device library table used while signed out, and as an
// offline copy of status changes.
type LocalStore struct {
	DB *sql.DB
}

func NewLocalStore(db *sql.DB) *LocalStore {
	return &LocalStore{DB: db}
}

// Put inserts the entry or replaces the stored one entirely.
func (s *LocalStore) Put(ctx context.Context, g models.OwnedGame) error {
	status := g.Status
	if status == "" {
		status = models.PlayStateUnspecified
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_games (game_id, name, cover_url, status)
		VALUES (?, ?, ?, ?)
	`, g.GameID, g.Name, g.CoverURL, string(status))
	if err != nil {
		return fmt.Errorf("put local game: %w", err)
	}
	return nil
}

func (s *LocalStore) All(ctx context.Context) ([]models.OwnedGame, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT game_id, name, cover_url, status
		FROM user_games
		ORDER BY name COLLATE NOCASE, game_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list local games: %w", err)
	}
	defer rows.Close()

	out := []models.OwnedGame{}
	for rows.Next() {
		g, err := scanLocal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Get returns (nil, nil) when the game is not in the table.
func (s *LocalStore) Get(ctx context.Context, gameID int64) (*models.OwnedGame, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT game_id, name, cover_url, status
		FROM user_games
		WHERE game_id = ?
	`, gameID)
	g, err := scanLocal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *LocalStore) Delete(ctx context.Context, gameID int64) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM user_games WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete local game: %w", err)
	}
	return nil
}

// Clear wipes the table.
func (s *LocalStore) Clear(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM user_games`); err != nil {
		return fmt.Errorf("clear local games: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocal(sc scanner) (models.OwnedGame, error) {
	var (
		g      models.OwnedGame
		cover  sql.NullString
		status string
	)
	if err := sc.Scan(&g.GameID, &g.Name, &cover, &status); err != nil {
		if err == sql.ErrNoRows {
			return g, err
		}
		return g, fmt.Errorf("scan local game: %w", err)
	}
	if cover.Valid {
		g.CoverURL = &cover.String
	}
	g.Status = models.PlayState(status)
	return g, nil
}
