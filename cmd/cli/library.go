package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"gamevault/internal/catalog"
	"gamevault/internal/library"
	"gamevault/pkg/models"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Short:   "Manage your game library",
	GroupID: "library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the games in your library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		games := app.rec.GetAllGames(cmd.Context())
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			status, ok := models.ParsePlayState(s)
			if !ok {
				return fmt.Errorf("unknown status %q", s)
			}
			filtered := games[:0]
			for _, g := range games {
				if g.Status == status {
					filtered = append(filtered, g)
				}
			}
			games = filtered
		}
		if jsonOutput {
			return printJSON(games)
		}
		printOwned(games)
		return nil
	},
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <game-id>",
	Short: "Add a catalog game to your library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGameID(args[0])
		if err != nil {
			return err
		}
		status, err := statusFlag(cmd)
		if err != nil {
			return err
		}
		if slices.Contains(app.rec.GetAllGameIDs(cmd.Context()), id) {
			return fmt.Errorf("game %d is already in your library; use `library status` to change it", id)
		}

		games, err := app.catalog.Games(cmd.Context(), catalog.IDsQuery([]int64{id}))
		if err != nil {
			return fmt.Errorf("%s", catalog.Message(err))
		}
		if len(games) == 0 {
			return fmt.Errorf("game %d not found in the catalog", id)
		}

		owned := games[0].Owned(status)
		if err := app.rec.AddGame(cmd.Context(), owned); err != nil {
			return err
		}
		fmt.Printf("Added %s (%d) as %s.\n", owned.Name, owned.GameID, owned.Status)
		return nil
	},
}

var libraryStatusCmd = &cobra.Command{
	Use:   "status <game-id> <state>",
	Short: "Change the play state of a game in your library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGameID(args[0])
		if err != nil {
			return err
		}
		status, ok := models.ParsePlayState(args[1])
		if !ok {
			return fmt.Errorf("unknown status %q", args[1])
		}

		ctx := cmd.Context()
		var current *models.OwnedGame
		for _, g := range app.rec.GetAllGames(ctx) {
			if g.GameID == id {
				current = &g
				break
			}
		}
		if current == nil {
			return fmt.Errorf("game %d is not in your library", id)
		}

		updated := models.OwnedGame{GameID: id, Status: status}.MergeInto(*current)
		if err := app.rec.UpdateGameStatus(ctx, updated); err != nil {
			return err
		}
		fmt.Printf("%s is now %s.\n", updated.Name, updated.Status)
		return nil
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <game-id>",
	Short: "Remove a game from your library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGameID(args[0])
		if err != nil {
			return err
		}
		if err := app.rec.DeleteGameByID(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Removed game %d.\n", id)
		return nil
	},
}

var libraryClearCmd = &cobra.Command{
	Use:   "clear-local",
	Short: "Delete every game stored on this device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.rec.ClearLocalData(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Local library cleared.")
		return nil
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export <file.csv>",
	Short: "Write your library to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		games := app.rec.GetAllGames(cmd.Context())
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := library.WriteCSV(f, games); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported %d games to %s.\n", len(games), args[0])
		return nil
	},
}

var libraryImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Add the games of a CSV backup to your library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		games, err := library.ReadCSV(f)
		if err != nil {
			return err
		}
		var errs []error
		added := 0
		for _, g := range games {
			if err := app.rec.AddGame(cmd.Context(), g); err != nil {
				errs = append(errs, fmt.Errorf("game %d: %w", g.GameID, err))
				continue
			}
			added++
		}
		fmt.Printf("Imported %d of %d games.\n", added, len(games))
		return errors.Join(errs...)
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Upload the games stored on this device to your account",
	GroupID: "library",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := app.session.Current(); !ok {
			return fmt.Errorf("not logged in")
		}
		report, err := app.rec.SyncLocalGamesToCloud(cmd.Context())
		printReport(report)
		return err
	},
}

func parseGameID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return id, nil
}

func statusFlag(cmd *cobra.Command) (models.PlayState, error) {
	s, _ := cmd.Flags().GetString("status")
	status, ok := models.ParsePlayState(s)
	if !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

func init() {
	libraryListCmd.Flags().String("status", "", "only show games in this state")
	libraryAddCmd.Flags().String("status", string(models.PlayStateWantToPlay), "initial play state")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryAddCmd)
	libraryCmd.AddCommand(libraryStatusCmd)
	libraryCmd.AddCommand(libraryRemoveCmd)
	libraryCmd.AddCommand(libraryClearCmd)
	libraryCmd.AddCommand(libraryExportCmd)
	libraryCmd.AddCommand(libraryImportCmd)
}
