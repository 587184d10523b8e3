// Package commands implements the reportcopilot CLI.
package commands

import (
	"database/sql"

	"github.com/teranos/reportcopilot/ai/provider"
	"github.com/teranos/reportcopilot/am"
	"github.com/teranos/reportcopilot/db"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/pulse/async"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/artifact"
	"github.com/teranos/reportcopilot/report/template"
)

// Glyphs used as command prefixes
const (
	glyphAM    = "≡"
	glyphPulse = "꩜"
	glyphDB    = "⊔"
	glyphDoc   = "▤"
)

// app bundles what most commands need: configuration, database and the job layer
type app struct {
	cfg       *am.Config
	db        *sql.DB
	templates *template.Registry
	store     *async.Store
	queue     *async.Queue
	artifacts *artifact.Store
}

// loadConfig loads and validates the configuration
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid configuration"), "run 'reportcopilot am show' to inspect it")
	}
	return cfg, nil
}

// loadTemplates returns the built-in templates merged with templates.path,
// defaulting to pipeline.default_template
func loadTemplates(cfg *am.Config) (*template.Registry, error) {
	reg, err := template.Load(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}
	return reg.WithDefault(cfg.Pipeline.DefaultTemplate)
}

// openDatabase opens and migrates the database at path
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", path)
	}
	return database, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	store := async.NewStore(database)
	return &app{
		cfg:       cfg,
		db:        database,
		templates: templates,
		store:     store,
		queue:     async.NewQueue(store, templates, logger.Logger),
		artifacts: artifact.NewStore(cfg.GetOutputDir()),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// runner wires the generation backend. Only commands that call it build one,
// so listing jobs works without an API key.
func (a *app) runner() (*async.Runner, error) {
	gen, err := provider.New(a.cfg, a.db, logger.Logger)
	if err != nil {
		return nil, err
	}
	agents := agent.New(gen, logger.Logger)
	return async.NewRunner(a.store, a.templates, agents, a.artifacts, logger.Logger), nil
}

// editor is a runner without a generation backend, for reading and saving drafts
func (a *app) editor() *async.Runner {
	return async.NewRunnerWithSteps(a.store, a.templates, nil, nil, a.artifacts, logger.Logger)
}
