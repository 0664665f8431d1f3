package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fbditools/fbdigen/internal/catalog"
	"github.com/fbditools/fbdigen/internal/config"
	"github.com/fbditools/fbdigen/internal/ctlfile"
	"github.com/fbditools/fbdigen/internal/engine"
	"github.com/fbditools/fbdigen/internal/logging"
	"github.com/fbditools/fbdigen/internal/resolve"
	"github.com/fbditools/fbdigen/internal/scalar"
	"github.com/fbditools/fbdigen/internal/service"
	"github.com/fbditools/fbdigen/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    version.Name,
		Usage:   version.Description,
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Transform a source dataset into FBDI CSVs using a mapping document",
				Action: runGenerate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "Pipe-delimited source data file (.csv or .txt)",
					},
					&cli.StringFlag{
						Name:     "mapping",
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "JSON mapping document",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output zip path (default: <source>_transformed.zip)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of mapping groups processed in parallel",
					},
				},
			},
			{
				Name:   "fields",
				Usage:  "Extract the field list from a control file",
				Action: runFields,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to a local control file",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "URL of a control file",
					},
				},
			},
			{
				Name:      "metadata",
				Usage:     "Report control-file fields for a cataloged object",
				ArgsUsage: "<object-name>",
				Action:    runMetadata,
			},
			{
				Name:  "objects",
				Usage: "Manage the object catalog",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List cataloged objects",
						Action: runObjectsList,
					},
					{
						Name:      "add",
						Usage:     "Add or update a cataloged object",
						ArgsUsage: "<object-name>",
						Action:    runObjectsAdd,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "control-files",
								Usage: "Comma-separated control file names",
							},
							&cli.StringFlag{
								Name:  "additional-fields",
								Usage: "Comma-separated extra field names",
							},
						},
					},
					{
						Name:      "remove",
						Usage:     "Remove a cataloged object",
						ArgsUsage: "<object-name>",
						Action:    runObjectsRemove,
					},
				},
			},
			{
				Name:  "settings",
				Usage: "Manage control-file URL settings",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show stored URL settings",
						Action: runSettingsShow,
					},
					{
						Name:   "set",
						Usage:  "Store URL settings",
						Action: runSettingsSet,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "url-prefix", Usage: "Control file URL prefix"},
							&cli.StringFlag{Name: "version", Usage: "Control file version segment"},
							&cli.StringFlag{Name: "url-suffix", Usage: "Control file URL suffix"},
						},
					},
				},
			},
		},
	}
}

// loadConfig loads the config file when present and falls back to defaults
// otherwise, then applies the logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")

	var cfg *config.Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else if c.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", path)
	} else {
		cfg = config.Default()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	logging.SetFormat(cfg.Log.Format)
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nInterrupted.")
		cancel()
	}()

	return ctx, cancel
}

func runGenerate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("workers") {
		cfg.Generate.Workers = c.Int("workers")
	}

	var querier scalar.Querier
	if cfg.ScalarDB.Enabled() {
		db, err := scalar.Open(cfg.ScalarDB.DriverName(), cfg.ScalarDB.DSN(), cfg.ScalarDB.QueryTimeoutDuration())
		if err != nil {
			return fmt.Errorf("failed to open scalar query database: %w", err)
		}
		defer db.Close()
		querier = db
	}

	resolver := resolve.New(resolve.SystemClock{}, querier)
	eng := engine.New(resolver, cfg.Generate.Workers)
	svc := service.NewGenerateService(eng, cfg.Generate.DelimiterRune(), true)

	sourcePath := c.String("source")
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	mappingDoc, err := os.ReadFile(c.String("mapping"))
	if err != nil {
		return fmt.Errorf("failed to read mapping file: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := svc.Generate(ctx, sourcePath, sourceFile, mappingDoc)
	if err != nil {
		return err
	}

	outPath := c.String("out")
	if outPath == "" {
		outPath = result.ArchiveName
	}
	if err := os.WriteFile(outPath, result.Archive, 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	fmt.Printf("Wrote %s (%d groups, run %s)\n", outPath, result.GroupCount, result.RunID)
	for _, f := range result.GroupFailures {
		fmt.Printf("  skipped group %s: %v\n", f.Name, f.Err)
	}
	for _, f := range result.SerializationFailures {
		fmt.Printf("  omitted entry %s: %v\n", f.Entry, f.Err)
	}
	return nil
}

func runFields(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var text string
	switch {
	case c.String("file") != "":
		data, err := os.ReadFile(c.String("file"))
		if err != nil {
			return fmt.Errorf("failed to read control file: %w", err)
		}
		text = string(data)
	case c.String("url") != "":
		ctx, cancel := signalContext()
		defer cancel()
		fetcher := ctlfile.NewHTTPFetcher(cfg.ControlFiles.FetchTimeoutDuration())
		text, err = fetcher.Fetch(ctx, c.String("url"))
		if err != nil {
			return err
		}
	default:
		return errors.New("either --file or --url is required")
	}

	fields, err := ctlfile.ParseFields(text)
	if err != nil {
		return err
	}
	for _, f := range fields {
		fmt.Println(f)
	}
	return nil
}

func runMetadata(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	objectName := c.Args().First()
	if objectName == "" {
		return errors.New("object name is required")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fetcher := ctlfile.NewHTTPFetcher(cfg.ControlFiles.FetchTimeoutDuration())
	svc := service.NewMetadataService(store, fetcher)

	reports, err := svc.ObjectFields(ctx, objectName)
	if err != nil {
		return err
	}

	for _, r := range reports {
		if r.Err != nil {
			fmt.Printf("%s: error: %v\n", r.ControlFile, r.Err)
			continue
		}
		fmt.Printf("%s:\n", r.ControlFile)
		for _, f := range r.Fields {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}

func runObjectsList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.ListObjects(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runObjectsAdd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return errors.New("object name is required")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	obj := &catalog.Object{
		Name:              name,
		ControlFiles:      splitList(c.String("control-files")),
		AdditionalColumns: splitList(c.String("additional-fields")),
	}
	if err := store.SaveObject(context.Background(), obj); err != nil {
		return err
	}
	fmt.Printf("Saved object %s\n", name)
	return nil
}

func runObjectsRemove(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return errors.New("object name is required")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteObject(context.Background(), name); err != nil {
		return err
	}
	fmt.Printf("Removed object %s\n", name)
	return nil
}

func runSettingsShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.GetSettings(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("url_prefix: %s\nversion: %s\nurl_suffix: %s\n", st.URLPrefix, st.Version, st.URLSuffix)
	return nil
}

func runSettingsSet(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.GetSettings(context.Background())
	if err != nil {
		return err
	}
	if c.IsSet("url-prefix") {
		st.URLPrefix = c.String("url-prefix")
	}
	if c.IsSet("version") {
		st.Version = c.String("version")
	}
	if c.IsSet("url-suffix") {
		st.URLSuffix = c.String("url-suffix")
	}
	if err := store.SaveSettings(context.Background(), st); err != nil {
		return err
	}
	fmt.Println("Settings saved")
	return nil
}

// splitList parses a comma-separated flag value into trimmed entries,
// dropping empties. Returns nil for an empty flag.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
