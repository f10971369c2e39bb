package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/catalog"
	"gamevault/internal/cloud"
	"gamevault/internal/library"
	"gamevault/pkg/database"
	"gamevault/pkg/logging"
	"gamevault/pkg/utils"
)

var (
	configDir  string
	jsonOutput bool

	app *appContext
)

// appContext is everything a command needs, built once per invocation.
type appContext struct {
	cfg     *utils.Config
	log     *zap.Logger
	db      *sql.DB
	session *auth.Session
	api     *cloud.HTTPCollection
	rec     *library.Reconciler
	sync    *library.LoginSync
	catalog *catalog.Client

	// login sync outcomes, produced by the session watcher
	reports  chan syncResult
	stopSync func()
}

type syncResult struct {
	report library.SyncReport
	err    error
}

// watchSession runs the login sync on every session login until stopped.
func (a *appContext) watchSession(ctx context.Context) {
	events, unsubscribe := a.session.Subscribe()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.sync.Run(ctx, events, func(r library.SyncReport, err error) {
			select {
			case a.reports <- syncResult{report: r, err: err}:
			default:
			}
		})
	}()
	a.stopSync = func() {
		cancel()
		unsubscribe()
		<-done
	}
}

func (a *appContext) close() {
	if a.stopSync != nil {
		a.stopSync()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}

func newApp(ctx context.Context) (*appContext, error) {
	cfg, err := utils.LoadConfig(configDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.Client.DBPath}, database.SchemaLocal)
	if err != nil {
		return nil, err
	}
	session, err := auth.OpenSession(cfg.Client.TokenPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	api := cloud.NewHTTPCollection(cfg.Client.APIURL, nil, logger)
	var remote library.Remote = api
	if cfg.Client.Remote == "s3" {
		s3c, err := cloud.NewS3Client(ctx, cfg.Client.S3.Region, cfg.Client.S3.Endpoint)
		if err != nil {
			db.Close()
			return nil, err
		}
		remote = cloud.NewS3Collection(s3c, cfg.Client.S3.Bucket, cfg.Client.S3.Prefix, logger)
	}

	rec := library.NewReconciler(library.NewLocalStore(db), remote, session, logger)
	a := &appContext{
		cfg:     cfg,
		log:     logger,
		db:      db,
		session: session,
		api:     api,
		rec:     rec,
		sync:    library.NewLoginSync(rec, logger),
		catalog: catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.ClientID, cfg.Catalog.Token,
			catalog.WithTimeout(cfg.Catalog.Timeout),
			catalog.WithLogger(logger),
		),
		reports: make(chan syncResult, 1),
	}
	a.watchSession(ctx)
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "gamevault <command>",
	Short:         "Offline-first game library and catalog browser",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory holding gamevault.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "catalog", Title: "Catalog:"},
		&cobra.Group{ID: "library", Title: "Library:"},
		&cobra.Group{ID: "account", Title: "Account:"},
	)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(facetsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(homeCmd)

	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(syncCmd)

	rootCmd.AddCommand(authCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
