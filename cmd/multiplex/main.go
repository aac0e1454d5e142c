package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sebastien/multiplex/internal/cmdspec"
	"github.com/sebastien/multiplex/internal/eventfmt"
	"github.com/sebastien/multiplex/internal/supervisor"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "multiplex: %v\n", err)
		os.Exit(1)
	}
}

var (
	outputPath  string
	timeoutSecs float64
	parseOnly   bool
	timeMode    string
)

var rootCmd = &cobra.Command{
	Use:   "multiplex [OPTIONS] COMMAND...",
	Short: "Launch multiple child processes and merge their output onto one annotated stream",
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "-", "Write merged stream to PATH; - means stdout")
	rootCmd.PersistentFlags().Float64VarP(&timeoutSecs, "timeout", "t", 0, "After SEC seconds, terminate gracefully then join. 0 disables")
	rootCmd.PersistentFlags().BoolVarP(&parseOnly, "parse", "p", false, "Parse only; print each spec's fields and exit")
	rootCmd.PersistentFlags().StringVar(&timeMode, "time", "off", "Enable timestamp prefix: relative or absolute")
	rootCmd.PersistentFlags().Lookup("time").NoOptDefVal = "absolute"
}

func run(cmd *cobra.Command, args []string) error {
	specs := make([]*cmdspec.CommandSpec, 0, len(args))
	for _, raw := range args {
		spec, err := cmdspec.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing %q: %w", raw, err)
		}
		specs = append(specs, spec)
	}

	if parseOnly {
		printParsedSpecs(specs)
		return nil
	}

	sink, closeSink, err := openSink(outputPath)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer closeSink()

	mode, err := parseTimeMode(timeMode)
	if err != nil {
		return err
	}

	formatter := eventfmt.New(sink, mode)
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	sup := supervisor.New(formatter, log.Sugar())
	sup.ListenForSignals()

	for _, spec := range specs {
		sup.Run(spec)
	}
	sup.ReleaseAll()

	if timeoutSecs > 0 {
		time.AfterFunc(time.Duration(timeoutSecs*float64(time.Second)), sup.Shutdown)
	}

	sup.Join(nil, 0)
	return nil
}

func openSink(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func parseTimeMode(raw string) (eventfmt.TimestampMode, error) {
	switch strings.ToLower(raw) {
	case "", "off":
		return eventfmt.TimestampOff, nil
	case "absolute":
		return eventfmt.TimestampAbsolute, nil
	case "relative":
		return eventfmt.TimestampRelative, nil
	default:
		return eventfmt.TimestampOff, fmt.Errorf("invalid --time value %q: want relative or absolute", raw)
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// printParsedSpecs implements -p/--parse: one parsed spec's fields per
// line, blank line between specs.
func printParsedSpecs(specs []*cmdspec.CommandSpec) {
	for i, spec := range specs {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("key: %s\n", displayKey(spec, i))
		fmt.Printf("color: %s\n", spec.Color)
		fmt.Printf("start_delay: %g\n", spec.StartDelay)
		fmt.Printf("dependencies: %s\n", formatDependencies(spec.Dependencies))
		fmt.Printf("redirects: %s\n", formatSources(spec.Redirects))
		fmt.Printf("start_on_output: %s\n", formatSources(spec.StartOnOutput))
		fmt.Printf("actions: %s\n", strings.Join(spec.Actions, ","))
		fmt.Printf("argv: %s\n", strings.Join(spec.Argv, " "))
	}
}

func displayKey(spec *cmdspec.CommandSpec, ordinal int) string {
	if spec.Key != "" {
		return spec.Key
	}
	return fmt.Sprintf("%d", ordinal)
}

func formatDependencies(deps []cmdspec.Dependency) string {
	if len(deps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(deps))
	for _, d := range deps {
		marker := "end"
		if d.WaitForStart {
			marker = "start"
		}
		parts = append(parts, fmt.Sprintf("%s(%s,+%g)", d.Key, marker, d.TotalDelay()))
	}
	return strings.Join(parts, ",")
}

func formatSources(sources []cmdspec.RedirectSource) string {
	if len(sources) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, fmt.Sprintf("%d:%s", s.Stream, s.Key))
	}
	return strings.Join(parts, ",")
}
