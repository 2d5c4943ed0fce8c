package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bookstore-catalog/api"
	"bookstore-catalog/catalog"
	"bookstore-catalog/config"
	"bookstore-catalog/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// cli holds the state shared by every subcommand of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "bookstore",
		Short: "Bookstore catalog service: sellers and the books they list",
		Long: `bookstore serves the seller catalog over HTTP and offers a few
maintenance commands that work directly against the store.

Configuration is read from flags, BOOKSTORE_* environment variables,
a .env file and an optional config.yaml, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ./config.yaml if present)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file to load into the environment")
	pf.String("db-driver", "sqlite3", "store driver (sqlite3|postgres)")
	pf.String("db-dsn", "bookstore.db", "SQLite path or PostgreSQL DSN")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	c.bind("db.driver", pf.Lookup("db-driver"))
	c.bind("db.dsn", pf.Lookup("db-dsn"))
	c.bind("log.level", pf.Lookup("log-level"))
	c.bind("log.format", pf.Lookup("log-format"))

	root.AddCommand(c.serveCmd(), c.migrateCmd(), c.sellersCmd())
	return root
}

func (c *cli) load() error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})
	return nil
}

func (c *cli) openManager(ctx context.Context) (*catalog.Manager, error) {
	mgr, err := catalog.OpenManager(ctx, catalog.Options{
		Driver:       c.cfg.DB.Driver,
		DSN:          c.cfg.DB.DSN,
		MaxOpenConns: c.cfg.DB.MaxOpenConns,
		MaxIdleConns: c.cfg.DB.MaxIdleConns,
		MaxIdleTime:  c.cfg.DB.MaxIdleTime,
	}, catalog.WithPasswordHashing(c.cfg.Security.HashPasswords))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return mgr, nil
}

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr, err := c.openManager(ctx)
			if err != nil {
				return err
			}
			defer mgr.Close()
			c.logger.Info("database connection pool established", "driver", c.cfg.DB.Driver)

			app := api.New(c.logger, mgr, c.cfg.Env, version)
			return app.Serve(ctx, fmt.Sprintf(":%d", c.cfg.Port))
		},
	}
	cmd.Flags().Int("port", 8000, "API server port")
	cmd.Flags().String("env", "development", "environment (development|staging|production)")
	c.bind("port", cmd.Flags().Lookup("port"))
	c.bind("env", cmd.Flags().Lookup("env"))
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the sellers and books tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()
			c.logger.Info("schema up to date", "driver", c.cfg.DB.Driver)
			return nil
		},
	}
}

// bind ties a flag to a config key. Only flags explicitly set on the command
// line override file and environment values.
func (c *cli) bind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
