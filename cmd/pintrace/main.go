// pintrace transforms Intel Pin trace output into profile records, with
// optional OpenTelemetry span export of the recorded timeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"pintrace/internal/attributes"
	"pintrace/internal/config"
	"pintrace/internal/otel"
	"pintrace/internal/output"
	"pintrace/internal/parse"
	"pintrace/internal/program"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds a console logger leveled by the -v count.
func newLogger(verbosity int) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadProgramData parses the static metadata for the run. Memory mode has no
// static file; it gets an empty data set.
func loadProgramData(cfg *config.Config, log zerolog.Logger) (*program.Data, error) {
	if cfg.StaticPath == "" {
		return program.NewData(), nil
	}

	var functionInfo map[string]program.FunctionInfo
	if cfg.ArgumentsPath != "" {
		var err error
		functionInfo, err = program.LoadFunctionInfo(cfg.ArgumentsPath)
		if err != nil {
			return nil, fmt.Errorf("loading function argument metadata: %w", err)
		}
	}

	data, err := program.NewStaticParser(functionInfo, log).ParseFile(cfg.StaticPath)
	if err != nil {
		return nil, fmt.Errorf("parsing static data: %w", err)
	}
	return data, nil
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func setupOTEL(log zerolog.Logger) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}

	tp, err := otel.InitProvider(otelCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Warn().Err(err).Msg("error shutting down OTEL provider")
		}
	}

	return tp.Tracer("pintrace"), cleanup, nil
}

// openOutput returns the record destination and a cleanup function.
func openOutput(cfg *config.Config) (*output.Writer, func() error, error) {
	if cfg.OutputPath == "" {
		w := output.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}

	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	w := output.NewWriter(f)
	cleanup := func() error {
		if err := w.Flush(); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return w, cleanup, nil
}

func run() error {
	cfg, err := config.ParseArgs(os.Args)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Verbosity)

	data, err := loadProgramData(cfg, log)
	if err != nil {
		return err
	}

	evaluator, err := attributes.NewEvaluator(cfg.CustomAttributes, log)
	if err != nil {
		return err
	}

	var formatter *output.OTELFormatter
	if cfg.OTELExport {
		tracer, cleanupOTEL, err := setupOTEL(log)
		if err != nil {
			return err
		}
		defer cleanupOTEL()
		formatter = output.NewOTELFormatter(tracer)
	}

	writer, closeOutput, err := openOutput(cfg)
	if err != nil {
		return err
	}

	parser, err := parse.Open(cfg.DynamicPath, cfg.Mode, data, parse.Options{
		Workload:        cfg.Workload,
		BasicBlocksOnly: cfg.BasicBlocksOnly,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := parser.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing dynamic data")
		}
	}()

	records := 0
	for {
		rec, err := parser.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		evaluator.Annotate(rec)
		if formatter != nil {
			formatter.HandleRecord(rec)
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
		records++
	}

	if err := closeOutput(); err != nil {
		return fmt.Errorf("finalizing output: %w", err)
	}

	log.Info().Int("records", records).Msg("transform complete")
	return nil
}
