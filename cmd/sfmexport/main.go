package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/23skdu/sfmexport/internal/core"
	"github.com/23skdu/sfmexport/internal/dataset"
	"github.com/23skdu/sfmexport/internal/logging"
	"github.com/23skdu/sfmexport/internal/nvm"
	"github.com/23skdu/sfmexport/internal/storage"
)

var errDatasetRequired = errors.New("dataset path is required")

func main() {
	if err := newApp(os.Stderr, ".env").Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sfmexport:", err)
		os.Exit(1)
	}
}

// runner carries the configuration and logger resolved in Before to the
// command actions.
type runner struct {
	logOutput io.Writer
	envFile   string
	cfg       Config
	logger    zerolog.Logger
}

func newApp(logOutput io.Writer, envFile string) *cli.App {
	r := &runner{logOutput: logOutput, envFile: envFile, logger: zerolog.Nop()}

	modeFlag := &cli.BoolFlag{
		Name:  "undistorted",
		Usage: "use the undistorted reconstruction, tracks and images",
	}

	return &cli.App{
		Name:  "sfmexport",
		Usage: "Export OpenSfM reconstructions to other formats",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or console"},
			&cli.StringFlag{Name: "metrics-textfile", Usage: "write Prometheus metrics to this file on exit"},
		},
		Before: r.before,
		After:  r.after,
		Commands: []*cli.Command{
			{
				Name:      "nvm",
				Usage:     "Export the first reconstruction to NVM_V3 (VisualSfM)",
				ArgsUsage: "DATASET",
				Flags: []cli.Flag{
					modeFlag,
					&cli.StringFlag{Name: "output", Usage: "output file (default: DATASET/reconstruction.nvm)"},
					&cli.StringFlag{Name: "track-count", Usage: "nominal or emitted"},
				},
				Action: r.exportNVM,
			},
			{
				Name:      "tracks-parquet",
				Usage:     "Convert the tracks file into the Parquet track cache",
				ArgsUsage: "DATASET",
				Flags:     []cli.Flag{modeFlag},
				Action:    r.tracksParquet,
			},
		},
	}
}

func (r *runner) before(c *cli.Context) error {
	cfg, err := LoadConfig(r.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("metrics-textfile") {
		cfg.MetricsTextfile = c.String("metrics-textfile")
	}
	if err := ValidateConfig(&cfg); err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Output:    r.logOutput,
		Component: "sfmexport",
	})
	if err != nil {
		return err
	}
	r.cfg = cfg
	r.logger = logger
	return nil
}

func (r *runner) after(*cli.Context) error {
	if r.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// commandConfig applies the per-command flags on top of the loaded
// configuration.
func (r *runner) commandConfig(c *cli.Context) (Config, error) {
	cfg := r.cfg
	if c.IsSet("undistorted") {
		cfg.Undistorted = c.Bool("undistorted")
	}
	if c.IsSet("track-count") {
		cfg.TrackCount = c.String("track-count")
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (r *runner) openDataset(c *cli.Context) (*dataset.Dataset, error) {
	if c.NArg() != 1 {
		return nil, errDatasetRequired
	}
	return dataset.Open(c.Args().First(), dataset.WithLogger(r.logger))
}

func (r *runner) exportNVM(c *cli.Context) error {
	cfg, err := r.commandConfig(c)
	if err != nil {
		return err
	}
	ds, err := r.openDataset(c)
	if err != nil {
		return err
	}
	mode := core.ModeFor(cfg.Undistorted)
	log := r.logger.With().Str("dataset", ds.Root()).Str("mode", string(mode)).Logger()

	recs, err := ds.LoadReconstructions(mode)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		log.Info().Msg("dataset has no reconstruction, nothing to export")
		return nil
	}
	graph, err := ds.LoadTracks(mode)
	if err != nil {
		return err
	}

	policy, err := nvm.ParseTrackCountPolicy(cfg.TrackCount)
	if err != nil {
		return err
	}
	out := ds.OutputPath(cfg.OutputName)
	if c.IsSet("output") {
		out = c.String("output")
	}

	images := ds.Images(mode)
	exporter := nvm.NewExporter(images, images, nvm.Config{TrackCount: policy, Logger: log})
	stats, err := exporter.Export(recs, graph, storage.NewAtomicFile(out))
	if err != nil {
		return err
	}

	log.Info().
		Str("output", out).
		Int("cameras", stats.Cameras).
		Int("points", stats.Points).
		Int("observations", stats.Observations).
		Int("dropped", stats.Dropped).
		Msg("wrote nvm")
	return nil
}

func (r *runner) tracksParquet(c *cli.Context) error {
	cfg, err := r.commandConfig(c)
	if err != nil {
		return err
	}
	ds, err := r.openDataset(c)
	if err != nil {
		return err
	}
	mode := core.ModeFor(cfg.Undistorted)

	edges, err := ds.ReadTracksCSV(mode)
	if err != nil {
		return err
	}
	out := ds.TracksParquetPath(mode)
	if err := storage.SaveTracksParquet(out, edges); err != nil {
		return err
	}
	r.logger.Info().Str("output", out).Int("edges", len(edges)).Msg("wrote track cache")
	return nil
}
