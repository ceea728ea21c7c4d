package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/at-ishikawa/labloom/internal/attachment"
	"github.com/at-ishikawa/labloom/internal/config"
	"github.com/at-ishikawa/labloom/internal/kvstore"
	"github.com/at-ishikawa/labloom/internal/localstore"
	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/reconcile"
	"github.com/at-ishikawa/labloom/internal/remote"
)

// app wires the controller, its stores and the attachment pipeline for one
// command invocation.
type app struct {
	cfg        *config.Config
	controller *reconcile.Controller
	pipeline   *attachment.Pipeline
	out        io.Writer
	closers    []func() error
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out}

	kv, err := a.openKVStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var remoteStore remote.Store
	if cfg.Remote.URL != "" {
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.Timeout(), cfg.Remote.RetryAttempts)
		a.closers = append(a.closers, client.Close)
		remoteStore = client
	}

	seed := note.SeedNotes
	if cfg.Notes.SeedFile != "" {
		seedNotes, err := note.ReadSeedFile(cfg.Notes.SeedFile)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("note.ReadSeedFile() > %w", err)
		}
		seed = func(time.Time) []note.Note {
			out := make([]note.Note, 0, len(seedNotes))
			for _, n := range seedNotes {
				out = append(out, n.Clone())
			}
			return out
		}
	}

	a.controller = reconcile.New(remoteStore, localstore.New(kv, cfg.Local.Limit), reconcile.Config{
		PreferRemote: cfg.Remote.PreferRemote,
		Seed:         seed,
	})

	opts := attachment.DefaultOptions()
	opts.MaxFileSize = cfg.Attachments.MaxFileSize
	a.pipeline = attachment.NewPipeline(nil, opts)
	return a, nil
}

func (a *app) openKVStore() (kvstore.Store, error) {
	local := a.cfg.Local
	switch local.Backend {
	case "memory":
		return kvstore.NewMemory(local.QuotaBytes), nil
	case "file":
		store, err := kvstore.NewFile(local.Directory, local.QuotaBytes)
		if err != nil {
			return nil, fmt.Errorf("kvstore.NewFile() > %w", err)
		}
		return store, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return kvstore.NewRedis(client, a.cfg.Redis.Prefix, local.QuotaBytes), nil
	case "sqlite":
		store, err := kvstore.OpenSQLite(local.SQLitePath, local.QuotaBytes)
		if err != nil {
			return nil, fmt.Errorf("kvstore.OpenSQLite() > %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown local backend %q", local.Backend)
}

// load populates the controller from the preferred store and reports a
// fallback to local data.
func (a *app) load(ctx context.Context) error {
	if err := a.controller.Load(ctx); err != nil {
		return fmt.Errorf("controller.Load() > %w", err)
	}
	if snapshot := a.controller.Snapshot(); snapshot.Status.Degraded() {
		printStatus(a.out, snapshot)
	}
	return nil
}

// ingest turns paths into attachments that fit next to existing.
func (a *app) ingest(ctx context.Context, paths []string, existing []note.Attachment) (attachment.Outcome, error) {
	files := make([]attachment.File, 0, len(paths))
	for _, path := range paths {
		f, err := attachment.FileFromPath(path)
		if err != nil {
			return attachment.Outcome{}, fmt.Errorf("attachment.FileFromPath() > %w", err)
		}
		files = append(files, f)
	}
	outcome := a.pipeline.Ingest(ctx, files, existing, a.cfg.Attachments.TotalBudget)
	printNotice(a.out, outcome)
	return outcome, nil
}

func (a *app) findNote(id string) (note.Note, error) {
	notes := a.controller.Notes()
	index := note.IndexByID(notes, id)
	if index < 0 {
		return note.Note{}, fmt.Errorf("%w: %s", note.ErrNotFound, id)
	}
	return notes[index], nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
