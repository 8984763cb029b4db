// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/chat"
	"github.com/disam-ia/disamia/internal/config"
	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/logging"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/prompt"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds everything a command needs, built from the loaded config.
type app struct {
	opts   *rootOptions
	cfg    *config.Config
	logger *log.Logger

	backend       storage.Backend
	knowledge     *knowledge.Store
	conversations *storage.ConversationStore
	composer      *prompt.Composer
	client        *ollama.Client
}

// newApp loads the config and opens storage. The caller must Close it.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: opts.verbose,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(storage.Options{
		Driver:     cfg.Storage.Driver,
		Dir:        dataDir,
		SQLitePath: cfg.Storage.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Debug("storage opened", "driver", cfg.Storage.Driver, "dir", dataDir)

	store := knowledge.NewStore(backend,
		knowledge.WithLogger(logging.Component(logger, "knowledge")),
		knowledge.WithContextHeader(cfg.Knowledge.ContextHeader),
	)
	if err := store.Initialize(); err != nil {
		backend.Close()
		return nil, fmt.Errorf("initialize knowledge: %w", err)
	}

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:       cfg.Ollama.URL,
		Timeout:       cfg.Ollama.Timeout(),
		StreamTimeout: cfg.Ollama.StreamTimeout(),
		Logger:        logging.Component(logger, "ollama"),
	})

	return &app{
		opts:          opts,
		cfg:           cfg,
		logger:        logger,
		backend:       backend,
		knowledge:     store,
		conversations: storage.NewConversationStore(backend, storage.WithConversationLogger(logging.Component(logger, "conversations"))),
		composer: prompt.NewComposer(store, prompt.Template{
			Preamble:     cfg.Prompt.Preamble,
			Instructions: cfg.Prompt.Instructions,
		}),
		client: client,
	}, nil
}

// Close releases the storage backend.
func (a *app) Close() error {
	return a.backend.Close()
}

// newSession starts a chat session with history enabled.
func (a *app) newSession() *chat.Session {
	return chat.NewSession(chat.Options{
		Client:        a.client,
		Composer:      a.composer,
		Conversations: a.conversations,
		Logger:        logging.Component(a.logger, "chat"),
	})
}

// ErrNoModels is returned when Ollama runs but has nothing installed.
var ErrNoModels = errors.New("no models installed; run 'ollama pull <model>'")

// selectModel picks --model, then the configured model, then the first
// installed one. Only the last case contacts Ollama.
func (a *app) selectModel(ctx context.Context) (string, error) {
	if a.opts.model != "" {
		return a.opts.model, nil
	}
	if a.cfg.Ollama.Model != "" {
		return a.cfg.Ollama.Model, nil
	}
	models, err := a.client.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", ErrNoModels
	}
	return models[0].Name, nil
}

// watchKnowledge reloads the knowledge store when another process rewrites
// it, until ctx is done. It only applies to the file driver; the other
// drivers have no file to watch.
func (a *app) watchKnowledge(ctx context.Context) {
	if !a.cfg.Knowledge.Watch {
		return
	}
	fb, ok := a.backend.(*storage.FileBackend)
	if !ok {
		return
	}
	w, err := knowledge.NewWatcher(a.knowledge, fb.Path(knowledge.StorageKey), 0)
	if err != nil {
		a.logger.Warn("knowledge watch disabled", "err", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			a.logger.Warn("knowledge watch stopped", "err", err)
		}
	}()
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
