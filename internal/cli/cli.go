package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"rpgm-translator/internal/backup"
	"rpgm-translator/internal/cache"
	"rpgm-translator/internal/config"
	"rpgm-translator/internal/exchange"
	"rpgm-translator/internal/filewalker"
	"rpgm-translator/internal/glossary"
	"rpgm-translator/internal/parser"
	"rpgm-translator/internal/pipeline"
	"rpgm-translator/internal/translation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:   "rpgm-translator",
		Short: "Machine translation tool for RPG Maker games",
		Long:  "Translates RPG Maker MV/MZ/VX Ace/VX/XP game files in place, protecting control codes, script expressions and plugin parameters, with a persistent translation cache.",
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(glossaryCmd())
	rootCmd.AddCommand(restoreCmd())
	rootCmd.AddCommand(cleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <project-path>",
		Short: "Translate game files in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, args[0])
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Translate without writing any files")

	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <project-path>",
		Short: "Extract translatable text and report what a run would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			return runScan(cmd, args[0], out)
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().String("out", "", "Also write the extracted units to a .csv or .json exchange file")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project-path> <output-file>",
		Short: "Export translatable units to a .csv or .json exchange file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], args[1])
		},
	}

	addConfigFlags(cmd)

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <project-path> <exchange-file>...",
		Short: "Apply translations from exchange files to the game files",
		Long:  "Reads one or more .csv or .json exchange files, later files winning on conflicts, and writes the translations into the matching game files. Applied translations are added to the cache.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], args[1:])
		},
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Report what would change without writing any files")

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the translation cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd, "stats")
		},
	}
	compact := &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the cache dropping superseded entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd, "compact")
		},
	}
	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached translation for the language pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd, "clear")
		},
	}

	for _, c := range []*cobra.Command{stats, compact, clear} {
		addConfigFlags(c)
		cmd.AddCommand(c)
	}

	return cmd
}

func glossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Work with glossary rule files",
	}

	check := &cobra.Command{
		Use:   "check [glossary-file]",
		Short: "Validate a glossary file and report its rule count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runGlossaryCheck(cmd, path)
		},
	}
	addConfigFlags(check)
	cmd.AddCommand(check)

	return cmd
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <project-path> [file]",
		Short: "Restore game files from the newest backups",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 2 {
				file = args[1]
			}
			return runRestore(args[0], file)
		},
	}
}

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup <project-path>",
		Short: "Delete stale backups, keeping the newest per file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, _ := cmd.Flags().GetDuration("age")
			keep, _ := cmd.Flags().GetInt("keep")
			return runCleanup(args[0], age, keep)
		},
	}

	cmd.Flags().Duration("age", 7*24*time.Hour, "Delete backups older than this")
	cmd.Flags().Int("keep", 3, "Always keep this many newest backups per file")

	return cmd
}

// addConfigFlags registers the flags that override environment
// configuration on commands that touch the pipeline or the cache.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("source", "", "Source language (overrides SOURCE_LANG)")
	f.String("target", "", "Target language (overrides TARGET_LANG)")
	f.StringArray("endpoint", nil, "Translation endpoint URL, repeatable (overrides TRANSLATOR_ENDPOINTS)")
	f.String("fallback", "", "Fallback endpoint URL, empty disables it (overrides FALLBACK_ENDPOINT)")
	f.String("cache", "", "Cache file path (overrides CACHE_PATH)")
	f.String("database-url", "", "PostgreSQL DSN for a shared cache (overrides DATABASE_URL)")
	f.String("glossary", "", "Glossary file path (overrides GLOSSARY_PATH)")
	f.Int("batch-size", 0, "Units per translation request (overrides BATCH_SIZE)")
	f.Int("max-batch-chars", 0, "Character budget per request (overrides MAX_BATCH_CHARS)")
	f.Int("concurrency", 0, "Parallel translation requests (overrides CONCURRENCY)")
	f.Int("timeout-ms", 0, "Request timeout in milliseconds (overrides REQUEST_TIMEOUT_MS)")
	f.Int("delay-ms", 0, "Delay before each request in milliseconds (overrides REQUEST_DELAY_MS)")
	f.Int("retries", 0, "Retries per request (overrides MAX_RETRIES)")
	f.Int("ban-threshold", 0, "Failures before an endpoint is benched (overrides BAN_THRESHOLD)")
	f.Int("ban-seconds", 0, "How long a failing endpoint stays benched (overrides BAN_SECONDS)")
	f.Int("racing", 0, "Endpoints raced per request (overrides RACING_REQUESTS)")
	f.Bool("notes", false, "Translate note fields (overrides TRANSLATE_NOTES)")
	f.Bool("comments", false, "Translate event comments (overrides TRANSLATE_COMMENTS)")
	f.StringArray("blacklist", nil, "Regex rejecting matching units, repeatable (overrides REGEX_BLACKLIST)")
}

// loadConfig resolves configuration from the environment, applies flag
// overrides, configures the log level and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()

	f := cmd.Flags()
	if f.Changed("source") {
		cfg.SourceLang, _ = f.GetString("source")
	}
	if f.Changed("target") {
		cfg.TargetLang, _ = f.GetString("target")
	}
	if f.Changed("endpoint") {
		cfg.Endpoints, _ = f.GetStringArray("endpoint")
	}
	if f.Changed("fallback") {
		cfg.FallbackEndpoint, _ = f.GetString("fallback")
	}
	if f.Changed("cache") {
		cfg.CachePath, _ = f.GetString("cache")
	}
	if f.Changed("database-url") {
		cfg.DatabaseURL, _ = f.GetString("database-url")
	}
	if f.Changed("glossary") {
		cfg.GlossaryPath, _ = f.GetString("glossary")
	}
	if f.Changed("batch-size") {
		cfg.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("max-batch-chars") {
		cfg.MaxBatchChars, _ = f.GetInt("max-batch-chars")
	}
	if f.Changed("concurrency") {
		cfg.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("timeout-ms") {
		ms, _ := f.GetInt("timeout-ms")
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if f.Changed("delay-ms") {
		ms, _ := f.GetInt("delay-ms")
		cfg.RequestDelay = time.Duration(ms) * time.Millisecond
	}
	if f.Changed("retries") {
		cfg.MaxRetries, _ = f.GetInt("retries")
	}
	if f.Changed("ban-threshold") {
		cfg.BanThreshold, _ = f.GetInt("ban-threshold")
	}
	if f.Changed("ban-seconds") {
		s, _ := f.GetInt("ban-seconds")
		cfg.BanDuration = time.Duration(s) * time.Second
	}
	if f.Changed("racing") {
		cfg.Racing, _ = f.GetInt("racing")
	}
	if f.Changed("notes") {
		cfg.TranslateNotes, _ = f.GetBool("notes")
	}
	if f.Changed("comments") {
		cfg.TranslateComments, _ = f.GetBool("comments")
	}
	if f.Changed("blacklist") {
		cfg.RegexBlacklist, _ = f.GetStringArray("blacklist")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose, _ := f.GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deps bundles the shared services a command wires together.
type deps struct {
	pool   *pgxpool.Pool
	cache  *cache.Cache
	gloss  *glossary.Glossary
	client *translation.Client
}

// initDependencies opens the cache backend, loads the glossary and
// builds the translation client.
func initDependencies(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	var store cache.Store
	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect PostgreSQL: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping PostgreSQL: %w", err)
		}
		log.Info().Msg("Connected to PostgreSQL")

		st, err := cache.NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("prepare cache schema: %w", err)
		}
		d.pool = pool
		store = st
	case cfg.CachePath != "":
		store = cache.NewFileStore(cfg.CachePath)
	}
	d.cache = cache.Open(ctx, store, cfg.SourceLang, cfg.TargetLang)

	if cfg.GlossaryPath != "" {
		g, err := glossary.Load(cfg.GlossaryPath)
		if err != nil {
			d.Close(ctx)
			return nil, fmt.Errorf("load glossary: %w", err)
		}
		log.Info().Int("rules", g.Len()).Str("path", cfg.GlossaryPath).Msg("Glossary loaded")
		d.gloss = g
	}

	d.client = translation.NewClient(translation.Config{
		Source:           cfg.SourceLang,
		Target:           cfg.TargetLang,
		Endpoints:        cfg.Endpoints,
		FallbackEndpoint: cfg.FallbackEndpoint,
		Timeout:          cfg.RequestTimeout,
		RequestDelay:     cfg.RequestDelay,
		MaxRetries:       cfg.MaxRetries,
		BanThreshold:     cfg.BanThreshold,
		BanDuration:      cfg.BanDuration,
		Racing:           cfg.Racing,
	})

	return d, nil
}

// Close flushes the cache and releases the pool. Safe to call with a
// cancelled context.
func (d *deps) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := d.cache.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush translation cache")
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// newPipeline assembles a pipeline for the project rooted at root.
func newPipeline(cfg *config.Config, d *deps, root string, dryRun bool, progress pipeline.Progress) (*pipeline.Pipeline, error) {
	blacklist, err := cfg.BlacklistPatterns()
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		BatchSize:     cfg.BatchSize,
		MaxBatchChars: cfg.MaxBatchChars,
		Concurrency:   cfg.Concurrency,
		DryRun:        dryRun,
		Progress:      progress,
	}, d.client, d.cache, d.gloss, backup.NewManager(root), parser.Options{
		TranslateNotes:    cfg.TranslateNotes,
		TranslateComments: cfg.TranslateComments,
		Blacklist:         blacklist,
	}), nil
}

// runTranslate handles the `translate` command.
func runTranslate(cmd *cobra.Command, dir string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Endpoints) == 0 && cfg.FallbackEndpoint == "" {
		return fmt.Errorf("no translation endpoint configured, set TRANSLATOR_ENDPOINTS or pass --endpoint")
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	d, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close(ctx)

	entries, err := filewalker.NewWalker().Walk(root)
	if err != nil {
		return fmt.Errorf("walk project: %w", err)
	}
	if len(entries) == 0 {
		log.Warn().Str("root", root).Msg("No translatable files found")
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	p, err := newPipeline(cfg, d, root, dryRun, logProgress())
	if err != nil {
		return err
	}

	rep, err := p.Run(ctx, filewalker.Paths(entries))
	if err != nil {
		return err
	}

	printReport(rep, dryRun)
	if rep.Partial {
		return fmt.Errorf("run interrupted before completion")
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", rep.Failed)
	}
	return nil
}

// runScan handles `scan` and `export`; an empty out means report only.
func runScan(cmd *cobra.Command, dir, out string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	d, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close(ctx)

	entries, err := filewalker.NewWalker().Walk(root)
	if err != nil {
		return fmt.Errorf("walk project: %w", err)
	}

	p, err := newPipeline(cfg, d, root, true, nil)
	if err != nil {
		return err
	}

	units, err := p.Scan(ctx, filewalker.Paths(entries))
	if err != nil {
		return err
	}

	cached := 0
	byContext := make(map[string]int)
	for _, u := range units {
		byContext[u.Context]++
		if u.Cached != "" {
			cached++
		}
	}

	fmt.Printf("%d unit(s) in %d file(s), %d already cached\n", len(units), len(entries), cached)
	contexts := make([]string, 0, len(byContext))
	for c := range byContext {
		contexts = append(contexts, c)
	}
	sort.Strings(contexts)
	for _, c := range contexts {
		fmt.Printf("  %-12s %d\n", c, byContext[c])
	}

	if out == "" {
		return nil
	}
	return writeExchange(out, cfg, root, units)
}

// writeExchange converts scanned units to exchange rows and writes them.
func writeExchange(path string, cfg *config.Config, root string, units []pipeline.ScanUnit) error {
	doc := &exchange.Document{
		Source: cfg.SourceLang,
		Target: cfg.TargetLang,
	}
	for _, u := range units {
		rel, err := filepath.Rel(root, u.File)
		if err != nil {
			rel = u.File
		}
		status := exchange.StatusPending
		if u.Cached != "" {
			status = exchange.StatusCached
		}
		doc.Units = append(doc.Units, exchange.Row{
			File:       filepath.ToSlash(rel),
			Path:       u.Path,
			Original:   u.Text,
			Translated: u.Cached,
			Status:     status,
		})
	}

	if err := exchange.WriteFile(path, doc); err != nil {
		return fmt.Errorf("write exchange file: %w", err)
	}
	log.Info().Int("units", len(doc.Units)).Str("path", path).Msg("Exchange file written")
	return nil
}

// runImport handles the `import` command.
func runImport(cmd *cobra.Command, dir string, files []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	var sets [][]exchange.Row
	for _, f := range files {
		rows, err := exchange.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		sets = append(sets, rows)
	}
	groups := exchange.GroupForApply(exchange.Merge(sets...))
	if len(groups) == 0 {
		log.Warn().Msg("Exchange files contain no translated rows")
		return nil
	}

	d, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close(ctx)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	p, err := newPipeline(cfg, d, root, dryRun, nil)
	if err != nil {
		return err
	}

	rels := make([]string, 0, len(groups))
	for rel := range groups {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	applied, changed, failed := 0, 0, 0
	for _, rel := range rels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		n, ch, err := p.ApplyFile(ctx, path, groups[rel])
		if err != nil {
			log.Error().Err(err).Str("file", rel).Msg("Import failed")
			failed++
			continue
		}
		applied += n
		if ch {
			changed++
		}
	}

	fmt.Printf("applied %d translation(s), %d file(s) changed\n", applied, changed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return nil
}

// runCache handles the `cache` subcommands.
func runCache(cmd *cobra.Command, op string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := initDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close(ctx)

	switch op {
	case "stats":
		backend := "memory only"
		switch {
		case cfg.DatabaseURL != "":
			backend = "postgresql"
		case cfg.CachePath != "":
			backend = cfg.CachePath
		}
		st := d.cache.Stats()
		fmt.Printf("backend:  %s\n", backend)
		fmt.Printf("pair:     %s -> %s\n", cfg.SourceLang, cfg.TargetLang)
		fmt.Printf("entries:  %d\n", st.Entries)
		return nil
	case "compact":
		if err := d.cache.Compact(ctx); err != nil {
			return fmt.Errorf("compact cache: %w", err)
		}
		return nil
	case "clear":
		if err := d.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		log.Info().Msg("Translation cache cleared")
		return nil
	default:
		return fmt.Errorf("unknown cache operation %q", op)
	}
}

// runGlossaryCheck handles `glossary check`.
func runGlossaryCheck(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		path = cfg.GlossaryPath
	}
	if path == "" {
		return fmt.Errorf("no glossary file given, set GLOSSARY_PATH or pass a path")
	}

	g, err := glossary.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d rule(s) ok\n", path, g.Len())
	return nil
}

// runRestore handles the `restore` command.
func runRestore(dir, file string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	m := backup.NewManager(root)

	if file != "" {
		target := file
		if !filepath.IsAbs(target) {
			target = filepath.Join(root, target)
		}
		if err := m.Restore(target); err != nil {
			return err
		}
		fmt.Printf("restored %s\n", file)
		return nil
	}

	n, err := m.RestoreAll()
	if err != nil {
		return err
	}
	fmt.Printf("restored %d file(s)\n", n)
	return nil
}

// runCleanup handles the `cleanup` command.
func runCleanup(dir string, age time.Duration, keep int) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	removed, err := backup.NewManager(root).Cleanup(age, keep)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d stale backup(s)\n", removed)
	return nil
}

// logProgress returns a progress callback that logs a line every 20
// finished batches and on completion.
func logProgress() pipeline.Progress {
	return func(c pipeline.Counts) {
		if c.Batches == 0 {
			return
		}
		if c.BatchesDone%20 != 0 && c.BatchesDone != c.Batches {
			return
		}
		log.Info().
			Int("done", c.BatchesDone).
			Int("batches", c.Batches).
			Int("cached", c.Cached).
			Int("translated", c.Translated).
			Msg("Progress")
	}
}

// printReport writes the end-of-run summary to stdout.
func printReport(rep *pipeline.Report, dryRun bool) {
	fmt.Printf("run %s finished in %s\n", rep.RunID, rep.Duration.Round(time.Millisecond))
	fmt.Printf("  files: %d scanned, %d changed, %d failed\n", rep.Files, rep.Changed, rep.Failed)
	fmt.Printf("  units: %d total, %d cached, %d translated, %d skipped\n", rep.Units, rep.Cached, rep.Translated, rep.Skipped)
	if dryRun {
		fmt.Println("  dry run, no files were written")
	}
	if rep.Partial {
		fmt.Println("  interrupted, rerun to translate the remainder")
	}
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}
