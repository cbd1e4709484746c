package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sheetdb/internal/config"
	"sheetdb/internal/db"
	"sheetdb/internal/storage"
	"sheetdb/internal/workspace"
)

// env is the state shared by every command: configuration, the log file and
// the selected profile.
type env struct {
	configDir string
	profile   string
	exportURI string

	cfg     *config.Config
	log     *logrus.Logger
	logFile *os.File
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	dir := e.configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return err
		}
		dir = d
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (using defaults)\n", err)
	}
	e.cfg = cfg

	log, f, err := newLogger(dir)
	if err != nil {
		return err
	}
	e.log, e.logFile = log, f
	return nil
}

func (e *env) teardown(*cobra.Command, []string) {
	if e.logFile != nil {
		e.logFile.Close()
	}
}

// newLogger writes text logs to the log file in dir. The TUI owns the
// terminal, so nothing is logged to stderr.
func newLogger(dir string) (*logrus.Logger, *os.File, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	level := logrus.InfoLevel
	if s := os.Getenv("SHEETDB_LOG_LEVEL"); s != "" {
		l, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, nil, fmt.Errorf("SHEETDB_LOG_LEVEL: %w", err)
		}
		level = l
	}
	log.SetLevel(level)

	if err := os.MkdirAll(dir, 0700); err != nil {
		log.SetOutput(io.Discard)
		return log, nil, nil
	}
	f, err := os.OpenFile(config.LogPath(dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(io.Discard)
		return log, nil, nil
	}
	log.SetOutput(f)
	return log, f, nil
}

// activeProfile returns the profile named by --profile, or the saved active one.
func (e *env) activeProfile() (config.Profile, error) {
	if e.profile != "" {
		i := e.cfg.Index(e.profile)
		if i < 0 {
			return config.Profile{}, fmt.Errorf("unknown profile %q", e.profile)
		}
		return e.cfg.Profiles[i], nil
	}
	p, ok := e.cfg.Active()
	if !ok {
		return config.Profile{}, errors.New("no storage profile configured; run sheetdb profile add")
	}
	return p, nil
}

// openStore connects to the backend of p. The returned function releases it.
func (e *env) openStore(ctx context.Context, p config.Profile) (storage.Store, func(), error) {
	log := e.log.WithField("profile", p.Name)
	switch p.Driver {
	case config.DriverSQLite:
		s, err := storage.OpenSQLite(ctx, p.DSN, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.DriverPostgres:
		d, err := db.ConnectURI(p.DSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewPostgres(ctx, d, log)
		if err != nil {
			d.Close()
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.DriverMemory:
		return storage.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("profile %s: unknown driver %q", p.Name, p.Driver)
	}
}

// openWorkspace opens the workspace of the active profile.
func (e *env) openWorkspace(ctx context.Context) (*workspace.Workspace, config.Profile, func(), error) {
	p, err := e.activeProfile()
	if err != nil {
		return nil, config.Profile{}, nil, err
	}
	return e.workspaceFor(ctx, p)
}

func (e *env) workspaceFor(ctx context.Context, p config.Profile) (*workspace.Workspace, config.Profile, func(), error) {
	store, closeFn, err := e.openStore(ctx, p)
	if err != nil {
		return nil, p, nil, err
	}
	return workspace.New(store, p.UserID, e.log), p, closeFn, nil
}

// exportTarget returns the database the export action writes to: the
// --export-uri flag, or the active profile when it is a postgres one.
func (e *env) exportTarget(p config.Profile) string {
	if e.exportURI != "" {
		return e.exportURI
	}
	if p.Driver == config.DriverPostgres {
		return p.DSN
	}
	return os.Getenv("SHEETDB_EXPORT_URI")
}

func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return u.Redacted()
}

func newRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:               "sheetdb",
		Short:             "Terminal spreadsheet workspace",
		Long:              "Upload, browse, edit and export CSV and XLSX files from the terminal.",
		SilenceUsage:      true,
		PersistentPreRunE: e.setup,
		PersistentPostRun: e.teardown,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runWorkspace(cmd.Context(), cmd.Flags().Changed("profile"))
		},
	}
	root.PersistentFlags().StringVar(&e.configDir, "config-dir", "", "configuration directory (default ~/.config/sheetdb)")
	root.PersistentFlags().StringVarP(&e.profile, "profile", "p", "", "storage profile to use")
	root.PersistentFlags().StringVar(&e.exportURI, "export-uri", "", "postgres:// URI used by the export action")

	root.AddCommand(
		newOpenCommand(e),
		newListCommand(e),
		newUploadCommand(e),
		newRemoveCommand(e),
		newRenameCommand(e),
		newConvertCommand(e),
		newExportCommand(e),
		newImportCommand(e),
		newMigrateLegacyCommand(e),
		newProfileCommand(e),
	)
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func trimExt(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}
