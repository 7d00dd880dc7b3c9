// Package pipeline drives a translation run end to end: extract units
// from game files, shield control codes, enforce glossary terms, batch
// and dispatch the texts, verify what comes back, and splice the results
// into the original bytes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"rpgm-translator/internal/backup"
	"rpgm-translator/internal/cache"
	"rpgm-translator/internal/glossary"
	"rpgm-translator/internal/parser"
	"rpgm-translator/internal/placeholder"
	"rpgm-translator/internal/textutil"
	"rpgm-translator/internal/translation"
	"rpgm-translator/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Counts is the running tally handed to a Progress callback.
type Counts struct {
	Units       int
	Cached      int
	Translated  int
	Skipped     int
	Batches     int
	BatchesDone int
}

// Progress receives count snapshots as a run advances. Called after
// extraction and after every finished batch.
type Progress func(Counts)

// Config tunes a Pipeline.
type Config struct {
	// BatchSize is the number of texts joined into one request.
	BatchSize int
	// MaxBatchChars bounds a request in runes; a longer single text is
	// sliced on protection-token boundaries and rejoined afterwards.
	MaxBatchChars int
	// Concurrency bounds parallel extraction and dispatch.
	Concurrency int
	// DryRun stages everything but writes no files.
	DryRun bool
	// Progress may be nil.
	Progress Progress
}

// Report summarizes one run.
type Report struct {
	RunID      string
	Files      int
	Changed    int
	Units      int
	Cached     int
	Translated int
	Skipped    int
	// Failed counts files that could not be read, parsed, backed up or
	// written. Unit-level failures revert to the original text and are
	// counted as skipped instead.
	Failed   int
	Partial  bool
	Duration time.Duration
}

// Pipeline owns the moving parts of a run. Construct with New.
type Pipeline struct {
	cfg      Config
	client   *translation.Client
	cache    *cache.Cache
	glossary *glossary.Glossary
	backups  *backup.Manager
	opts     parser.Options
}

// New assembles a pipeline. The glossary may be nil and the client may
// be nil for scan-only use; the cache is always required, memory-only
// when persistence is off.
func New(cfg Config, client *translation.Client, cch *cache.Cache, gl *glossary.Glossary, backups *backup.Manager, opts parser.Options) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		cfg:      cfg,
		client:   client,
		cache:    cch,
		glossary: gl,
		backups:  backups,
		opts:     opts,
	}
}

type fileEntry struct {
	path string
	res  *parser.Result
}

// extract parses all files on the worker pool and returns the survivors
// plus the count of files that failed.
func (p *Pipeline) extract(ctx context.Context, paths []string) ([]fileEntry, int) {
	pool := worker.NewPool(p.cfg.Concurrency, func(ctx context.Context, path string) (*parser.Result, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pr := parser.ForFile(path)
		if pr == nil {
			return nil, fmt.Errorf("no parser for %s", path)
		}
		res, err := pr.Parse(path, data, p.opts)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return res, nil
	})

	var entries []fileEntry
	failed := 0
	for _, t := range pool.Execute(ctx, paths) {
		if t.Err != nil {
			failed++
			continue
		}
		entries = append(entries, fileEntry{path: t.Input, res: t.Result})
	}
	return entries, failed
}

type runState struct {
	mu     sync.Mutex
	counts Counts
	cb     Progress
}

func (st *runState) emit() {
	if st.cb == nil {
		return
	}
	st.mu.Lock()
	c := st.counts
	st.mu.Unlock()
	st.cb(c)
}

// Run translates every supported file in paths. Cancellation is honored
// between batches: in-flight requests finish on a detached context so
// their results still reach the cache and the files, and the report
// comes back marked partial.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Report, error) {
	if p.client == nil {
		return nil, errors.New("pipeline: no translation client configured")
	}

	start := time.Now()
	rep := &Report{RunID: uuid.NewString(), Files: len(paths)}
	log.Info().Str("run", rep.RunID).Int("files", len(paths)).Msg("Translation run started")

	entries, failedFiles := p.extract(ctx, paths)
	rep.Failed += failedFiles

	// Identical texts translate once; refs fan the result back out.
	perFile := make([]map[string]string, len(entries))
	var items []*item
	index := make(map[string]*item)
	for fi, e := range entries {
		perFile[fi] = make(map[string]string)
		for _, u := range e.res.Units {
			rep.Units++
			pathStr := u.Path.String()
			if tr, ok := p.cache.Get(u.Text); ok {
				perFile[fi][pathStr] = tr
				rep.Cached++
				continue
			}
			it, ok := index[u.Text]
			if !ok {
				prot, mapping := placeholder.Protect(u.Text)
				guarded, guards := p.glossary.PreGuarded(prot)
				pieces := splitProtected(guarded, p.cfg.MaxBatchChars)
				it = &item{
					raw:     u.Text,
					pieces:  pieces,
					out:     make([]string, len(pieces)),
					mapping: mapping,
					guards:  guards,
				}
				index[u.Text] = it
				items = append(items, it)
			}
			it.refs = append(it.refs, unitRef{file: fi, path: pathStr})
		}
	}

	st := &runState{cb: p.cfg.Progress}
	batches := partition(items, p.cfg.BatchSize, p.cfg.MaxBatchChars)
	st.counts = Counts{Units: rep.Units, Cached: rep.Cached, Batches: len(batches)}
	st.emit()
	log.Info().
		Str("run", rep.RunID).
		Int("units", rep.Units).
		Int("cached", rep.Cached).
		Int("batches", len(batches)).
		Msg("Extraction finished")

	if len(batches) > 0 {
		dctx := context.WithoutCancel(ctx)
		pool := worker.NewPool(p.cfg.Concurrency, func(ctx context.Context, b []piece) (int, error) {
			return p.translateBatch(dctx, rep.RunID, b, st), nil
		})
		pool.Execute(ctx, batches)
	}

	for _, it := range items {
		if it.ok {
			rep.Translated += len(it.refs)
			for _, r := range it.refs {
				perFile[r.file][r.path] = it.final
			}
		} else {
			rep.Skipped += len(it.refs)
		}
	}

	for fi, e := range entries {
		if len(perFile[fi]) == 0 {
			continue
		}
		if err := p.applyAndWrite(e, perFile[fi], rep); err != nil {
			rep.Failed++
			log.Error().Err(err).Str("file", e.path).Msg("Applying translations failed")
		}
	}

	if err := p.cache.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("Cache flush failed")
	}

	rep.Partial = ctx.Err() != nil
	rep.Duration = time.Since(start)
	log.Info().
		Str("run", rep.RunID).
		Int("translated", rep.Translated).
		Int("cached", rep.Cached).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Bool("partial", rep.Partial).
		Dur("duration", rep.Duration).
		Msg("Translation run finished")
	return rep, nil
}

// translateBatch sends one batch and books the results. Returns the
// number of failed pieces.
func (p *Pipeline) translateBatch(ctx context.Context, runID string, b []piece, st *runState) int {
	batchID := uuid.NewString()
	texts := make([]string, len(b))
	for i, pc := range b {
		texts[i] = pc.it.pieces[pc.idx]
	}
	log.Debug().Str("run", runID).Str("batch", batchID).Int("items", len(texts)).Msg("Dispatching batch")

	outs, errs := p.client.TranslateBatch(ctx, texts)

	failed := 0
	var finished []*item
	st.mu.Lock()
	for i, pc := range b {
		if errs[i] != nil || strings.TrimSpace(outs[i]) == "" {
			failed++
			continue
		}
		pc.it.out[pc.idx] = outs[i]
		pc.it.done++
		if pc.it.done == len(pc.it.pieces) {
			finished = append(finished, pc.it)
		}
	}
	st.counts.BatchesDone++
	st.mu.Unlock()

	for _, it := range finished {
		final, ok := p.finishItem(it)
		st.mu.Lock()
		if ok {
			it.final, it.ok = final, true
			st.counts.Translated += len(it.refs)
		} else {
			st.counts.Skipped += len(it.refs)
		}
		st.mu.Unlock()
	}
	st.emit()

	if failed > 0 {
		log.Warn().Str("run", runID).Str("batch", batchID).Int("failed", failed).Msg("Batch items failed")
	}
	return failed
}

// finishItem undoes the protection on a fully translated item, verifies
// the control codes, repairs them when possible, and caches the result.
// Returns ok=false when the unit must keep its original text.
func (p *Pipeline) finishItem(it *item) (string, bool) {
	restored := it.guards.Restore(strings.Join(it.out, ""))
	restored = it.mapping.Restore(restored)
	if err := placeholder.Validate(it.raw, restored); err != nil {
		repaired, rerr := placeholder.Repair(it.raw, restored)
		if rerr != nil {
			log.Warn().
				Str("text", textutil.Truncate(it.raw, 60)).
				Msg("Control codes lost in translation, keeping original")
			return "", false
		}
		restored = repaired
	}
	restored = p.glossary.Post(restored)
	if strings.TrimSpace(restored) == "" {
		return "", false
	}
	p.cache.Put(it.raw, restored)
	return restored, true
}

func (p *Pipeline) applyAndWrite(e fileEntry, translations map[string]string, rep *Report) error {
	out, missed, err := e.res.Apply(translations)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	rep.Skipped += missed
	if !e.res.Modified() {
		return nil
	}
	applied := len(translations) - missed
	if p.cfg.DryRun {
		rep.Changed++
		log.Info().Str("file", e.path).Int("applied", applied).Msg("Dry run, file not written")
		return nil
	}
	if err := p.writeFile(e.path, out); err != nil {
		return err
	}
	rep.Changed++
	log.Info().Str("file", e.path).Int("applied", applied).Msg("File translated")
	return nil
}

// writeFile backs the target up and replaces it atomically, keeping its
// permission bits.
func (p *Pipeline) writeFile(path string, out []byte) error {
	if p.backups != nil {
		if _, err := p.backups.Backup(path); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := backup.SafeWrite(path, out, mode); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ScanUnit is one extracted unit with any cached translation attached.
type ScanUnit struct {
	File    string
	Path    string
	Text    string
	Context string
	Cached  string
}

// Scan extracts every unit without touching the network or the files.
func (p *Pipeline) Scan(ctx context.Context, paths []string) ([]ScanUnit, error) {
	entries, failed := p.extract(ctx, paths)
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("Some files could not be scanned")
	}

	var units []ScanUnit
	for _, e := range entries {
		for _, u := range e.res.Units {
			su := ScanUnit{File: u.File, Path: u.Path.String(), Text: u.Text, Context: u.Context}
			if tr, ok := p.cache.Get(u.Text); ok {
				su.Cached = tr
			}
			units = append(units, su)
		}
	}
	return units, ctx.Err()
}

// ApplyFile applies externally produced translations, keyed by unit
// path, to a single file. Matched translations are also recorded in the
// cache so later runs agree with the import.
func (p *Pipeline) ApplyFile(ctx context.Context, path string, translations map[string]string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", path, err)
	}
	pr := parser.ForFile(path)
	if pr == nil {
		return 0, false, fmt.Errorf("no parser for %s", path)
	}
	res, err := pr.Parse(path, data, p.opts)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", path, err)
	}

	out, missed, err := res.Apply(translations)
	if err != nil {
		return 0, false, fmt.Errorf("apply: %w", err)
	}
	applied := 0
	for _, v := range translations {
		if v != "" {
			applied++
		}
	}
	applied -= missed

	sourceByPath := make(map[string]string, len(res.Units))
	for _, u := range res.Units {
		sourceByPath[u.Path.String()] = u.Text
	}
	for k, v := range translations {
		if v == "" {
			continue
		}
		if src, ok := sourceByPath[k]; ok {
			p.cache.Put(src, v)
		}
	}

	if !res.Modified() {
		return applied, false, nil
	}
	if p.cfg.DryRun {
		log.Info().Str("file", path).Int("applied", applied).Msg("Dry run, file not written")
		return applied, true, nil
	}
	if err := p.writeFile(path, out); err != nil {
		return applied, false, err
	}
	log.Info().Str("file", path).Int("applied", applied).Msg("Imported translations applied")
	return applied, true, nil
}
