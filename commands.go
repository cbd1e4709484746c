package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sheetdb/internal/app"
	"sheetdb/internal/config"
	"sheetdb/internal/db"
	"sheetdb/internal/sheet"
	"sheetdb/internal/ui"
	"sheetdb/internal/workspace"
)

const dbTimeout = 30 * time.Second

// runWorkspace starts the TUI for a storage profile. With several saved
// profiles and no --profile flag the picker runs first.
func (e *env) runWorkspace(ctx context.Context, profileSet bool) error {
	p, err := e.activeProfile()
	if err != nil {
		return err
	}
	if !profileSet && len(e.cfg.Profiles) > 1 {
		result, err := tea.NewProgram(newPickerModel(e.cfg), tea.WithAltScreen()).Run()
		if err != nil {
			return err
		}
		pm, ok := result.(pickerModel)
		if !ok || !pm.done {
			return nil
		}
		p = pm.chosen
	}

	ws, p, closeFn, err := e.workspaceFor(ctx, p)
	if err != nil {
		return err
	}
	defer closeFn()

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	model := app.NewModel(app.Options{
		Workspace: ws,
		SaveDir:   cwd,
		ExportURI: e.exportTarget(p),
		Editor:    e.cfg.Editor,
		Title:     p.Name,
		Log:       e.log,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func newOpenCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "open <file>",
		Short: "Edit a local CSV or XLSX file",
		Long:  "Edit a local file, or the table in a .json preview written by convert --preview. Saving writes <name>_edited.<ext> next to it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			t, name, err := sheet.LoadFile(path)
			if err != nil {
				return err
			}
			p, _ := e.activeProfile()
			model := app.NewModel(app.Options{
				LocalTable: t,
				LocalName:  filepath.Join(filepath.Dir(path), name),
				SaveDir:    filepath.Dir(path),
				ExportURI:  e.exportTarget(p),
				Editor:     e.cfg.Editor,
				Log:        e.log,
			})
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newListCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the files in the workspace",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, _, closeFn, err := e.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			l, err := ws.Files(cmd.Context())
			if err != nil {
				return err
			}
			printListing(cmd.OutOrStdout(), l)
			return nil
		},
	}
}

func printListing(w io.Writer, l workspace.Listing) {
	if len(l.Files) == 0 {
		fmt.Fprintln(w, "No files uploaded yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.DimText).
		Headers("NAME", "STORED AS", "SIZE", "UPLOADED")
	for _, f := range l.Files {
		t.Row(f.DisplayName, f.Name, humanize.IBytes(uint64(f.Size)), humanize.Time(f.UploadedAt))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d files, %s\n", len(l.Files), humanize.IBytes(uint64(l.TotalSize)))
}

func newUploadCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload CSV or XLSX files to the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, closeFn, err := e.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				f, preview, err := ws.Upload(cmd.Context(), filepath.Base(path), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as %s (%d rows)\n", f.DisplayName, f.Name, preview.RowCount)
			}
			return nil
		},
	}
}

func findFile(ctx context.Context, ws *workspace.Workspace, name string) (workspace.File, error) {
	l, err := ws.Files(ctx)
	if err != nil {
		return workspace.File{}, err
	}
	f, ok := l.Find(name)
	if !ok {
		return workspace.File{}, fmt.Errorf("no file named %q", name)
	}
	return f, nil
}

func newRemoveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a file from the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, closeFn, err := e.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := findFile(cmd.Context(), ws, args[0])
			if err != nil {
				return err
			}
			if err := ws.Delete(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", f.DisplayName)
			return nil
		},
	}
}

func newRenameCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <name> <new-name>",
		Short: "Rename a file in the workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, closeFn, err := e.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := findFile(cmd.Context(), ws, args[0])
			if err != nil {
				return err
			}
			nf, err := ws.Rename(cmd.Context(), f, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", f.DisplayName, nf.DisplayName)
			return nil
		},
	}
}

func newConvertCommand(e *env) *cobra.Command {
	var preview bool
	var outDir string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Parse a file and write it back out as <name>_edited.<ext>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			t, name, err := sheet.LoadFile(path)
			if err != nil {
				return err
			}
			if preview {
				return sheet.WritePreview(cmd.OutOrStdout(), t.Preview(name, workspace.ContentType(name)))
			}

			out, err := sheet.Encode(t, name)
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Dir(path)
			}
			dst := filepath.Join(dir, out.Name)
			if err := os.WriteFile(dst, out.Data, 0644); err != nil {
				return err
			}
			e.log.WithField("path", dst).Info("file converted")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows, %s)\n", dst, t.RowCount(), humanize.IBytes(uint64(len(out.Data))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "print the parsed preview as JSON instead")
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "directory to write to (default: next to the input)")
	return cmd
}

func newExportCommand(e *env) *cobra.Command {
	var uri, tableName string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Copy a CSV or XLSX file into a new PostgreSQL table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, name, err := sheet.LoadFile(args[0])
			if err != nil {
				return err
			}
			if uri == "" {
				p, _ := e.activeProfile()
				uri = e.exportTarget(p)
			}
			if uri == "" {
				return errors.New("no database given; use --uri")
			}
			if tableName == "" {
				tableName = trimExt(name)
			}

			d, err := db.ConnectURI(uri)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), dbTimeout)
			defer cancel()
			n, err := d.ExportTable(ctx, t, tableName)
			if err != nil {
				return err
			}
			e.log.WithFields(logrus.Fields{"table": tableName, "rows": n}).Info("table exported")
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d rows into %s on %s\n", n, tableName, d.ConnInfo())
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "postgres:// URI of the target database")
	cmd.Flags().StringVarP(&tableName, "table", "t", "", "table to create (default: file name)")
	return cmd
}

func newImportCommand(e *env) *cobra.Command {
	var uri, tableName, output string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Write a PostgreSQL table out as a CSV or XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uri == "" {
				p, _ := e.activeProfile()
				uri = e.exportTarget(p)
			}
			if uri == "" {
				return errors.New("no database given; use --uri")
			}

			d, err := db.ConnectURI(uri)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), dbTimeout)
			defer cancel()
			if tableName == "" {
				return printTables(ctx, cmd.OutOrStdout(), d)
			}

			if output == "" {
				output = tableName + ".csv"
			}
			format, err := sheet.FormatOf(sheet.Ext(output))
			if err != nil {
				return err
			}
			t, err := d.ImportTable(ctx, tableName)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if format == sheet.FormatCSV {
				err = sheet.WriteCSV(f, t)
			} else {
				err = sheet.WriteXLSX(f, t)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows from %s to %s\n", t.RowCount(), tableName, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "postgres:// URI of the source database")
	cmd.Flags().StringVarP(&tableName, "table", "t", "", "table to read (default: list the tables)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: <table>.csv)")
	return cmd
}

// printTables lists the public tables of d with their columns.
func printTables(ctx context.Context, w io.Writer, d *db.DB) error {
	names, err := d.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No tables in %s.\n", d.Database())
		return nil
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.DimText).
		Headers("TABLE", "COLUMNS")
	for _, name := range names {
		cols, err := d.TableColumns(ctx, name)
		if err != nil {
			return fmt.Errorf("columns of %s: %w", name, err)
		}
		t.Row(name, strings.Join(cols, ", "))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d %s in %s; pick one with --table\n", len(names), plural(len(names), "table", "tables"), d.Database())
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func newMigrateLegacyCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-legacy",
		Short: "Move files stored under the old {userID}/ prefix into uploads/{userID}/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, _, closeFn, err := e.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := ws.MigrateLegacy(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d files into %s\n", n, ws.Dir())
			return nil
		},
	}
}

func newProfileCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage storage profiles",
	}

	var driver, dsn, userID string
	var activate bool
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a storage profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch driver {
			case config.DriverSQLite, config.DriverPostgres, config.DriverMemory:
			default:
				return fmt.Errorf("unknown driver %q (sqlite, postgres or memory)", driver)
			}
			if driver != config.DriverMemory && dsn == "" {
				return errors.New("--dsn is required")
			}
			if driver == config.DriverPostgres {
				d, err := db.ConnectURI(dsn)
				if err != nil {
					return err
				}
				d.Close()
			}
			if userID == "" {
				userID = "local"
			}
			e.cfg.Add(config.Profile{Name: args[0], Driver: driver, DSN: dsn, UserID: userID})
			if activate || len(e.cfg.Profiles) == 1 {
				e.cfg.ActiveProfile = args[0]
			}
			if err := e.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %s\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&driver, "driver", config.DriverSQLite, "storage driver: sqlite, postgres or memory")
	add.Flags().StringVar(&dsn, "dsn", "", "sqlite file path or postgres:// URI")
	add.Flags().StringVar(&userID, "user", "", "user ID that owns the workspace (default local)")
	add.Flags().BoolVar(&activate, "use", false, "make this the active profile")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List storage profiles",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(ui.DimText).
				Headers("", "NAME", "BACKEND", "USER")
			for _, p := range e.cfg.Profiles {
				mark := ""
				if p.Name == e.cfg.ActiveProfile {
					mark = "*"
				}
				t.Row(mark, p.Name, describe(p), p.UserID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		},
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a storage profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i := e.cfg.Index(args[0])
			if i < 0 {
				return fmt.Errorf("unknown profile %q", args[0])
			}
			e.cfg.Delete(i)
			return e.cfg.Save()
		},
	}

	use := &cobra.Command{
		Use:   "use <name>",
		Short: "Make a storage profile the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Index(args[0]) < 0 {
				return fmt.Errorf("unknown profile %q", args[0])
			}
			e.cfg.ActiveProfile = args[0]
			return e.cfg.Save()
		},
	}

	cmd.AddCommand(add, ls, rm, use)
	return cmd
}
