package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gamevault/internal/catalog"
	"gamevault/internal/home"
	"gamevault/internal/search"
	"gamevault/pkg/models"
)

var searchCmd = &cobra.Command{
	Use:     "search [query]",
	Short:   "Search the catalog with filters",
	GroupID: "catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specFromFlags(cmd, strings.Join(args, " "))
		if err != nil {
			return err
		}
		pages, _ := cmd.Flags().GetInt("pages")

		sess := search.New(app.catalog,
			search.WithInitialSpec(spec),
			search.WithDebounce(app.cfg.Catalog.Debounce),
			search.WithLogger(app.log),
		)
		defer sess.Close()

		ctx := cmd.Context()
		st, err := sess.Await(ctx, search.Settled)
		if err != nil {
			return err
		}
		for i := 1; i < pages && st.Phase == search.PhaseSuccess && !st.EndReached; i++ {
			if !sess.LoadMore() {
				break
			}
			if st, err = sess.Await(ctx, search.Settled); err != nil {
				return err
			}
		}

		if st.Phase == search.PhaseError {
			return fmt.Errorf("%s", catalog.Message(st.Err))
		}
		if jsonOutput {
			return printJSON(st.Games)
		}
		printGames(st.Games)
		if !st.EndReached {
			fmt.Printf("\n%d results so far; use --pages to fetch more.\n", len(st.Games))
		}
		return nil
	},
}

func specFromFlags(cmd *cobra.Command, query string) (catalog.FilterSpec, error) {
	spec := catalog.DefaultFilterSpec()
	spec.Query = query

	f := cmd.Flags()
	spec.GenreIDs, _ = f.GetIntSlice("genre")
	spec.PlatformIDs, _ = f.GetIntSlice("platform")
	spec.ModeIDs, _ = f.GetIntSlice("mode")
	spec.PerspectiveIDs, _ = f.GetIntSlice("perspective")

	if f.Changed("rating-min") {
		spec.Rating.From, _ = f.GetInt("rating-min")
	}
	if f.Changed("rating-max") {
		spec.Rating.To, _ = f.GetInt("rating-max")
	}
	if f.Changed("year-from") {
		spec.Years.From, _ = f.GetInt("year-from")
	}
	if f.Changed("year-to") {
		spec.Years.To, _ = f.GetInt("year-to")
	}

	if s, _ := f.GetString("sort"); s != "" {
		field, ok := catalog.ParseSortField(s)
		if !ok {
			return spec, fmt.Errorf("unknown sort %q", s)
		}
		spec.Sort = field
	}
	if d, _ := f.GetString("dir"); d != "" {
		dir, ok := catalog.ParseSortDirection(d)
		if !ok {
			return spec, fmt.Errorf("unknown direction %q", d)
		}
		spec.Direction = dir
	}
	return spec.Normalize(), nil
}

var facetsCmd = &cobra.Command{
	Use:     "facets",
	Short:   "List the filter values search accepts",
	GroupID: "catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		facets := catalog.Facets()
		if jsonOutput {
			return printJSON(facets)
		}
		for _, f := range facets {
			fmt.Printf("%s (--%s)\n", f.Title, f.Key)
			if f.Bounds != nil {
				fmt.Printf("  %d..%d\n", f.Bounds.From, f.Bounds.To)
			}
			for _, o := range f.Options {
				fmt.Printf("  %4d  %s\n", o.ID, o.Label)
			}
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <game-id>",
	Short:   "Show the catalog details of a game",
	GroupID: "catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("game id must be a number: %w", err)
		}
		d, err := app.catalog.GameDetails(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("%s", catalog.Message(err))
		}
		if d == nil {
			return fmt.Errorf("game %d not found", id)
		}
		if jsonOutput {
			return printJSON(d)
		}

		fmt.Printf("%s (%d)\n", d.Name, d.ID)
		fmt.Printf("Released:   %s\n", released(d.FirstReleaseDate))
		fmt.Printf("Rating:     %s\n", rating(d.TotalRating))
		if devs := d.Developers(); len(devs) > 0 {
			fmt.Printf("Developers: %s\n", strings.Join(devs, ", "))
		}
		fmt.Printf("Genres:     %s\n", names(d.Genres))
		fmt.Printf("Platforms:  %s\n", names(d.Platforms))
		if d.Summary != "" {
			fmt.Printf("\n%s\n", d.Summary)
		}
		return nil
	},
}

func names(items []models.Named) string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Name)
	}
	return strings.Join(out, ", ")
}

var homeCmd = &cobra.Command{
	Use:     "home",
	Short:   "Show the home feed",
	GroupID: "catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		feed := home.NewFeed(app.catalog, app.rec, home.WithLogger(app.log))
		if err := feed.Load(cmd.Context()); err != nil {
			fmt.Println("Some sections failed to load:", catalog.Message(err))
		}
		snap := feed.Snapshot()
		if jsonOutput {
			return printJSON(snap)
		}

		titles := map[catalog.Section]string{
			catalog.SectionPopular:     "Popular",
			catalog.SectionNewReleases: "New releases",
			catalog.SectionTopRated:    "Top rated",
			catalog.SectionUpcoming:    "Upcoming",
		}
		for _, s := range catalog.Sections {
			fmt.Printf("== %s ==\n", titles[s])
			printGames(snap.Sections[s].Games)
			fmt.Println()
		}

		st := snap.Stats
		fmt.Printf("Library: %d games (%d want to play, %d playing, %d completed)\n",
			st.Total, st.WantToPlay, st.Playing, st.Completed)
		if len(snap.UpcomingFromLibrary) > 0 {
			fmt.Println("\n== Coming soon from your library ==")
			printGames(snap.UpcomingFromLibrary)
		}
		if len(snap.Recommended) > 0 {
			fmt.Printf("\n== Because you like %s ==\n", snap.FavouriteGenre)
			printGames(snap.Recommended)
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.IntSlice("genre", nil, "genre id (repeatable, see facets)")
	f.IntSlice("platform", nil, "platform id (repeatable)")
	f.IntSlice("mode", nil, "game mode id (repeatable)")
	f.IntSlice("perspective", nil, "player perspective id (repeatable)")
	f.Int("rating-min", catalog.DefaultRatingRange.From, "minimum rating")
	f.Int("rating-max", catalog.DefaultRatingRange.To, "maximum rating")
	f.Int("year-from", catalog.DefaultYearRange.From, "first release year")
	f.Int("year-to", catalog.DefaultYearRange.To, "last release year")
	f.String("sort", "", "relevance, rating, name, release_date or popularity")
	f.String("dir", "", "asc or desc")
	f.Int("pages", 1, "number of result pages to fetch")
}
