package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gamevault/pkg/models"
)

var csvHeader = []string{"game_id", "name", "status", "cover_url", "updated_at"}

// WriteCSV writes games as a CSV backup with a header row.
func WriteCSV(w io.Writer, games []models.OwnedGame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, g := range games {
		cover := ""
		if g.CoverURL != nil {
			cover = *g.CoverURL
		}
		updated := ""
		if !g.UpdatedAt.IsZero() {
			updated = g.UpdatedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			strconv.FormatInt(g.GameID, 10),
			g.Name,
			string(g.Status),
			cover,
			updated,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a backup written by WriteCSV. Columns are matched by header
// name, so extra or reordered columns are accepted. Rows without a game id
// are skipped; an unknown status is imported as UNSPECIFIED.
func ReadCSV(r io.Reader) ([]models.OwnedGame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if _, ok := header["game_id"]; !ok {
		return nil, errors.New("csv has no game_id column")
	}

	var games []models.OwnedGame
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		rawID := valueAt(header, row, "game_id")
		if rawID == "" {
			continue
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("csv line %d: invalid game id %q", line, rawID)
		}

		g := models.OwnedGame{
			GameID: id,
			Name:   valueAt(header, row, "name"),
			Status: models.PlayStateUnspecified,
		}
		if s, ok := models.ParsePlayState(valueAt(header, row, "status")); ok {
			g.Status = s
		}
		if cover := valueAt(header, row, "cover_url"); cover != "" {
			g.CoverURL = &cover
		}
		if raw := valueAt(header, row, "updated_at"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: invalid updated_at: %w", line, err)
			}
			g.UpdatedAt = t
		}
		games = append(games, g)
	}
	return games, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
