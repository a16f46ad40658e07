package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/navgraph"
)

type LogConfig struct {
	Format string
	Level  string
}

type HTTPConfig struct {
	Addr string
}

type GraphConfig struct {
	// File is a saved graph snapshot. When empty a grid is built instead.
	File string
	// Obstacles is a GeoJSON file of footprints whose cells are blocked.
	Obstacles string
}

type GridConfig struct {
	Cols     int
	Rows     int
	Layers   int
	Spacing  float64
	Diagonal bool
}

// RoadmapConfig replaces the grid with a probabilistic roadmap sampled inside
// the grid's bounds when Samples is positive.
type RoadmapConfig struct {
	Samples int
	Radius  float64
	Seed    int64
}

type Config struct {
	Log             LogConfig
	HTTP            HTTPConfig
	Workers         int
	Graph           GraphConfig
	Grid            GridConfig
	Roadmap         RoadmapConfig
	SnapTolerance   float64
	SimplifyEpsilon float64
	PollInterval    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Log:             LogConfig{Format: "text", Level: "info"},
		HTTP:            HTTPConfig{Addr: "0.0.0.0:8080"},
		Workers:         4,
		Grid:            GridConfig{Cols: 32, Rows: 32, Layers: 4, Spacing: 1},
		Roadmap:         RoadmapConfig{Radius: 2, Seed: 1},
		SnapTolerance:   math.Inf(1),
		SimplifyEpsilon: -1,
		PollInterval:    2 * time.Millisecond,
	}
}

// addCommonFlags declares the flags shared by every command that needs a graph.
func addCommonFlags(flags *pflag.FlagSet) {
	defaultConfig := DefaultConfig()

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in (text or json)")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use (none, debug, info, warn, error)")
	flags.Int("workers", defaultConfig.Workers, "the number of pathfinding worker goroutines")
	flags.String("graph-file", defaultConfig.Graph.File, "a saved graph (.json, .yaml or .yml) to load instead of building a grid")
	flags.String("graph-obstacles", defaultConfig.Graph.Obstacles, "a GeoJSON file of obstacle footprints blocking grid cells")
	flags.Int("grid-cols", defaultConfig.Grid.Cols, "grid cells along x")
	flags.Int("grid-rows", defaultConfig.Grid.Rows, "grid cells along y")
	flags.Int("grid-layers", defaultConfig.Grid.Layers, "grid cells along z")
	flags.Float64("grid-spacing", defaultConfig.Grid.Spacing, "distance between neighbouring grid cells")
	flags.Bool("grid-diagonal", defaultConfig.Grid.Diagonal, "also connect in-layer diagonal neighbours")
	flags.Int("roadmap-samples", defaultConfig.Roadmap.Samples, "sample a roadmap with this many nodes inside the grid bounds instead of building the grid")
	flags.Float64("roadmap-radius", defaultConfig.Roadmap.Radius, "the link radius between roadmap samples")
	flags.Int64("roadmap-seed", defaultConfig.Roadmap.Seed, "the random seed for roadmap sampling")
	flags.Float64("snap-tolerance", defaultConfig.SnapTolerance, "the farthest a query endpoint may be from its snapped node")
	flags.Float64("simplify-epsilon", defaultConfig.SimplifyEpsilon, "simplify batched routes with this tolerance; negative disables")
}

// bindCommonFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. It runs in PreRun so that only the executing command owns the keys.
func bindCommonFlags(flags *pflag.FlagSet) {
	MustBindPFlag("log.format", flags.Lookup("log-format"))
	MustBindEnv("log.format", "NAVPLANNER_LOG_FORMAT")

	MustBindPFlag("log.level", flags.Lookup("log-level"))
	MustBindEnv("log.level", "NAVPLANNER_LOG_LEVEL")

	MustBindPFlag("workers", flags.Lookup("workers"))
	MustBindEnv("workers", "NAVPLANNER_WORKERS")

	MustBindPFlag("graph.file", flags.Lookup("graph-file"))
	MustBindEnv("graph.file", "NAVPLANNER_GRAPH_FILE")

	MustBindPFlag("graph.obstacles", flags.Lookup("graph-obstacles"))
	MustBindEnv("graph.obstacles", "NAVPLANNER_GRAPH_OBSTACLES")

	MustBindPFlag("grid.cols", flags.Lookup("grid-cols"))
	MustBindEnv("grid.cols", "NAVPLANNER_GRID_COLS")

	MustBindPFlag("grid.rows", flags.Lookup("grid-rows"))
	MustBindEnv("grid.rows", "NAVPLANNER_GRID_ROWS")

	MustBindPFlag("grid.layers", flags.Lookup("grid-layers"))
	MustBindEnv("grid.layers", "NAVPLANNER_GRID_LAYERS")

	MustBindPFlag("grid.spacing", flags.Lookup("grid-spacing"))
	MustBindEnv("grid.spacing", "NAVPLANNER_GRID_SPACING")

	MustBindPFlag("grid.diagonal", flags.Lookup("grid-diagonal"))
	MustBindEnv("grid.diagonal", "NAVPLANNER_GRID_DIAGONAL")

	MustBindPFlag("roadmap.samples", flags.Lookup("roadmap-samples"))
	MustBindEnv("roadmap.samples", "NAVPLANNER_ROADMAP_SAMPLES")

	MustBindPFlag("roadmap.radius", flags.Lookup("roadmap-radius"))
	MustBindEnv("roadmap.radius", "NAVPLANNER_ROADMAP_RADIUS")

	MustBindPFlag("roadmap.seed", flags.Lookup("roadmap-seed"))
	MustBindEnv("roadmap.seed", "NAVPLANNER_ROADMAP_SEED")

	MustBindPFlag("snap.tolerance", flags.Lookup("snap-tolerance"))
	MustBindEnv("snap.tolerance", "NAVPLANNER_SNAP_TOLERANCE")

	MustBindPFlag("simplify.epsilon", flags.Lookup("simplify-epsilon"))
	MustBindEnv("simplify.epsilon", "NAVPLANNER_SIMPLIFY_EPSILON")
}

// ReadConfig returns the configuration resolved from flags, env and config file.
func ReadConfig() (*Config, error) {
	config := DefaultConfig()
	config.Log.Format = viper.GetString("log.format")
	config.Log.Level = viper.GetString("log.level")
	if addr := viper.GetString("http.addr"); addr != "" {
		config.HTTP.Addr = addr
	}
	config.Workers = viper.GetInt("workers")
	config.Graph.File = viper.GetString("graph.file")
	config.Graph.Obstacles = viper.GetString("graph.obstacles")
	config.Grid.Cols = viper.GetInt("grid.cols")
	config.Grid.Rows = viper.GetInt("grid.rows")
	config.Grid.Layers = viper.GetInt("grid.layers")
	config.Grid.Spacing = viper.GetFloat64("grid.spacing")
	config.Grid.Diagonal = viper.GetBool("grid.diagonal")
	config.Roadmap.Samples = viper.GetInt("roadmap.samples")
	config.Roadmap.Radius = viper.GetFloat64("roadmap.radius")
	config.Roadmap.Seed = viper.GetInt64("roadmap.seed")
	config.SnapTolerance = viper.GetFloat64("snap.tolerance")
	config.SimplifyEpsilon = viper.GetFloat64("simplify.epsilon")
	if d := viper.GetDuration("poll.interval"); d != 0 {
		config.PollInterval = d
	}

	if err := config.Verify(); err != nil {
		return nil, err
	}
	return config, nil
}

// Verify checks the values that cannot be caught by flag parsing.
func (c *Config) Verify() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if math.IsNaN(c.SnapTolerance) || c.SnapTolerance < 0 {
		return fmt.Errorf("snap tolerance must be non-negative, got %v", c.SnapTolerance)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// buildGraph loads the configured snapshot or builds the configured grid.
func buildGraph(c *Config, log logger.Logger) (*navgraph.Graph, error) {
	if c.Graph.File != "" {
		g, err := navgraph.Load(c.Graph.File)
		if err != nil {
			return nil, fmt.Errorf("load graph: %w", err)
		}
		log.Info("graph loaded",
			zap.String("file", c.Graph.File),
			zap.Int("nodes", g.Len()),
			zap.Int("edges", g.EdgeCount()))
		return g, nil
	}

	spec := navgraph.GridSpec{
		Cols:     c.Grid.Cols,
		Rows:     c.Grid.Rows,
		Layers:   c.Grid.Layers,
		Spacing:  c.Grid.Spacing,
		Diagonal: c.Grid.Diagonal,
	}
	if c.Graph.Obstacles != "" {
		footprints, err := navgraph.LoadFootprints(c.Graph.Obstacles)
		if err != nil {
			return nil, fmt.Errorf("load obstacles: %w", err)
		}
		spec.Blocked = footprints.Contains
		log.Info("obstacles loaded", zap.String("file", c.Graph.Obstacles), zap.Int("footprints", len(footprints)))
	}

	if c.Roadmap.Samples > 0 {
		g, err := navgraph.BuildRoadmap(navgraph.RoadmapSpec{
			Samples: c.Roadmap.Samples,
			Radius:  c.Roadmap.Radius,
			Min:     spec.Position(0, 0, 0),
			Max:     spec.Position(spec.Cols-1, spec.Rows-1, spec.Layers-1),
			Seed:    c.Roadmap.Seed,
			Blocked: spec.Blocked,
		})
		if err != nil {
			return nil, fmt.Errorf("build roadmap: %w", err)
		}
		log.Info("roadmap built",
			zap.Int("nodes", g.Len()),
			zap.Int("edges", g.EdgeCount()))
		return g, nil
	}

	g, err := navgraph.BuildGrid(spec)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	log.Info("grid built",
		zap.Int("nodes", g.Len()),
		zap.Int("walkable", g.WalkableCount()),
		zap.Int("edges", g.EdgeCount()))
	return g, nil
}
