package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gamevault/internal/auth"
	"gamevault/pkg/models"
)

// Repo is the server side of the cloud library: one collection of games per
// user in the cloud_games table.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Upsert merges g into the user's collection. An empty name, nil cover or
// empty status keeps the stored value.
func (r *Repo) Upsert(ctx context.Context, userID string, g models.OwnedGame) error {
	var status sql.NullString
	if g.Status != "" {
		status = sql.NullString{String: string(g.Status), Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO cloud_games (user_id, game_id, name, cover_url, status, updated_at)
		VALUES (?1, ?2, ?3, ?4, COALESCE(?5, 'UNSPECIFIED'), CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, game_id) DO UPDATE SET
			name = CASE WHEN ?3 <> '' THEN ?3 ELSE cloud_games.name END,
			cover_url = COALESCE(?4, cloud_games.cover_url),
			status = COALESCE(?5, cloud_games.status),
			updated_at = CURRENT_TIMESTAMP
	`, userID, g.GameID, g.Name, g.CoverURL, status)
	if err != nil {
		return fmt.Errorf("upsert cloud game: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, userID string, gameID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM cloud_games
		WHERE user_id = ? AND game_id = ?
	`, userID, gameID)
	if err != nil {
		return false, fmt.Errorf("delete cloud game: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// List returns the user's collection, most recently changed first. An empty
// status lists every entry.
func (r *Repo) List(ctx context.Context, userID string, status models.PlayState) ([]models.OwnedGame, error) {
	query := `
		SELECT game_id, name, cover_url, status, updated_at
		FROM cloud_games
		WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += `
		ORDER BY updated_at DESC, game_id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cloud games: %w", err)
	}
	defer rows.Close()

	out := []models.OwnedGame{}
	for rows.Next() {
		g, err := scanCloud(rows)
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

// Get returns (nil, nil) when the user does not own the game.
func (r *Repo) Get(ctx context.Context, userID string, gameID int64) (*models.OwnedGame, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT game_id, name, cover_url, status, updated_at
		FROM cloud_games
		WHERE user_id = ? AND game_id = ?
	`, userID, gameID)
	g, err := scanCloud(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Stats counts the user's games per play state. Genre counts need catalog
// data and are left to the caller.
func (r *Repo) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	stats := models.UserStats{GenreCounts: map[string]int{}}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM cloud_games
		WHERE user_id = ?
		GROUP BY status
	`, userID)
	if err != nil {
		return stats, fmt.Errorf("count cloud games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total += n
		switch models.PlayState(strings.ToUpper(status)) {
		case models.PlayStateWantToPlay:
			stats.WantToPlay += n
		case models.PlayStatePlaying:
			stats.Playing += n
		case models.PlayStateCompleted:
			stats.Completed += n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("rows err: %w", err)
	}
	return stats, nil
}

func scanCloud(sc scanner) (models.OwnedGame, error) {
	var (
		g       models.OwnedGame
		cover   sql.NullString
		status  string
		updated time.Time
	)
	if err := sc.Scan(&g.GameID, &g.Name, &cover, &status, &updated); err != nil {
		if err == sql.ErrNoRows {
			return g, err
		}
		return g, fmt.Errorf("scan cloud game: %w", err)
	}
	if cover.Valid {
		g.CoverURL = &cover.String
	}
	g.Status = models.PlayState(status)
	g.UpdatedAt = updated.UTC()
	return g, nil
}

// ForUser exposes one user's collection as a Store, so an in-process server
// can serve as the remote backend.
func (r *Repo) ForUser(p auth.Principal) Store {
	return &userStore{repo: r, userID: p.UserID}
}

type userStore struct {
	repo   *Repo
	userID string
}

func (s *userStore) Put(ctx context.Context, g models.OwnedGame) error {
	if s.userID == "" {
		return ErrNotAuthenticated
	}
	return s.repo.Upsert(ctx, s.userID, g)
}

func (s *userStore) All(ctx context.Context) ([]models.OwnedGame, error) {
	if s.userID == "" {
		return nil, ErrNotAuthenticated
	}
	return s.repo.List(ctx, s.userID, "")
}

func (s *userStore) Delete(ctx context.Context, gameID int64) error {
	if s.userID == "" {
		return ErrNotAuthenticated
	}
	_, err := s.repo.Delete(ctx, s.userID, gameID)
	return err
}
