package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/razeghi71/lazydf/config"
	"github.com/razeghi71/lazydf/dataset"
	"github.com/razeghi71/lazydf/engine"
	"github.com/razeghi71/lazydf/logging"
	"github.com/razeghi71/lazydf/parser"
)

// session is a compiled query bound to its graph.
type session struct {
	cfg    *config.Config
	graph  *engine.Graph
	result *engine.Result
	log    *slog.Logger
}

// loadConfig reads --config, then lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, rf *rootFlags) (*config.Config, error) {
	cfg := config.Default()
	if rf.config != "" {
		var err error
		if cfg, err = config.Load(rf.config); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("workers") || rf.config == "" {
		cfg.Workers = rf.workers
	}
	if flags.Changed("seed") {
		cfg.Seed = rf.seed
	}
	if flags.Changed("chunk-size") || rf.config == "" {
		cfg.ChunkSize = rf.chunkSize
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rf.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rf.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession parses the query, opens its dataset and books the query on
// a fresh graph. A dataset in the config file takes precedence over the
// query's source; a .yaml source is read as a dataset spec.
func openSession(cmd *cobra.Command, rf *rootFlags, src string) (*session, error) {
	cfg, err := loadConfig(cmd, rf)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	log := logging.New("cli")

	q, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	spec, err := datasetFor(cfg, q.Source.Filename)
	if err != nil {
		return nil, fmt.Errorf("load error: %w", err)
	}
	opts := append(cfg.EngineOptions(), engine.WithLogger(logging.New("engine")))
	g, err := engine.New(spec, opts...)
	if err != nil {
		return nil, err
	}
	if rf.rangeSpec != "" {
		r, err := parseRange(rf.rangeSpec)
		if err != nil {
			return nil, err
		}
		if err := g.ChangeRange(r); err != nil {
			return nil, err
		}
	}
	r, _, err := engine.Compile(q, g.Root())
	if err != nil {
		return nil, err
	}
	log.Debug("query compiled", "action", r.Name(), "nodes", g.Nodes(), "columns", g.SourceColumns())
	return &session{cfg: cfg, graph: g, result: r, log: log}, nil
}

func datasetFor(cfg *config.Config, source string) (engine.DatasetSpec, error) {
	if cfg.Dataset != nil {
		return engine.FromSpec(cfg.Dataset)
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		s, err := dataset.LoadSpec(source)
		if err != nil {
			return engine.DatasetSpec{}, err
		}
		return engine.FromSpec(s)
	}
	d, err := dataset.Open(source)
	if err != nil {
		return engine.DatasetSpec{}, err
	}
	return engine.DatasetSpec{Source: d}, nil
}

// parseRange reads "begin:end".
func parseRange(s string) (engine.Range, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return engine.Range{}, fmt.Errorf("range %q: expected begin:end", s)
	}
	begin, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return engine.Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		return engine.Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	return engine.Range{Begin: begin, End: end}, nil
}
