package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gamevault/pkg/models"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printGames(games []models.Game) {
	if len(games) == 0 {
		fmt.Println("No games found.")
		return
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tRATING\tRELEASED\tGENRES")
	for _, g := range games {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			g.ID, g.Name, rating(g.TotalRating), released(g.FirstReleaseDate), strings.Join(g.GenreNames(), ", "))
	}
	_ = w.Flush()
}

func printOwned(games []models.OwnedGame) {
	if len(games) == 0 {
		fmt.Println("Your library is empty.")
		return
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tSTATUS")
	for _, g := range games {
		fmt.Fprintf(w, "%d\t%s\t%s\n", g.GameID, g.Name, g.Status)
	}
	_ = w.Flush()
}

func rating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *r)
}

func released(ts *int64) string {
	if ts == nil {
		return "TBA"
	}
	return time.Unix(*ts, 0).UTC().Format("2006-01-02")
}
