package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/compile"
	"github.com/deltalog/deltalog/config"
	"github.com/deltalog/deltalog/debugreport"
	"github.com/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/metrics"
)

type buildParams struct {
	factDir     string
	outputDir   string
	engine      string
	provenance  string
	incremental bool
	profile     string
	debugReport string
	format      string
	showMetrics bool
}

func init() {
	params := buildParams{}

	buildCommand := &cobra.Command{
		Use:   "build <unit.json>",
		Short: "Translate a typed AST unit into an IR program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(args[0], params)
		},
	}

	flags := buildCommand.Flags()
	flags.StringVarP(&params.factDir, "fact-dir", "F", ".", "directory for fact files")
	flags.StringVarP(&params.outputDir, "output-dir", "D", ".", "directory for output files, or - for stdout")
	flags.StringVar(&params.engine, "engine", "", "communication engine for inter-process loads and stores")
	flags.StringVar(&params.provenance, "provenance", "", "provenance mode (on, subtreeHeights)")
	flags.BoolVar(&params.incremental, "incremental", false, "enable incremental evaluation")
	flags.StringVar(&params.profile, "profile", "", "emit profiling instrumentation to the given log")
	flags.StringVar(&params.debugReport, "debug-report", "", "write a translation debug report to the given file")
	flags.StringVar(&params.format, "format", "pretty", "output format (pretty, json)")
	flags.BoolVar(&params.showMetrics, "metrics", false, "print compile-phase metrics to stderr")

	for _, name := range []string{"fact-dir", "output-dir", "engine", "provenance", "incremental", "profile", "debug-report"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}

	RootCommand.AddCommand(buildCommand)
}

func runBuild(path string, params buildParams) error {
	prog, conf, err := loadUnit(path)
	if err != nil {
		return err
	}

	m := metrics.New()
	report := debugreport.New()

	compiler := compile.New().
		WithProgram(prog).
		WithConfig(conf).
		WithLogger(newLogger()).
		WithMetrics(m).
		WithDebugReport(report)

	compiled, err := compiler.Compile(context.Background())
	if err != nil {
		return err
	}

	switch params.format {
	case "pretty":
		if err := ir.Pretty(os.Stdout, compiled); err != nil {
			return err
		}
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(compiled); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", params.format)
	}

	if conf.DebugReport != "" {
		f, err := os.Create(conf.DebugReport)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := report.WriteTo(f); err != nil {
			return err
		}
	}

	if params.showMetrics {
		fmt.Fprintln(os.Stderr, m)
	}

	return nil
}

// loadUnit reads a JSON AST unit and derives the effective configuration
// from flags, environment, and config file via viper.
func loadUnit(path string) (*ast.Program, *config.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var prog ast.Program
	if err := json.Unmarshal(raw, &prog); err != nil {
		return nil, nil, fmt.Errorf("parse unit %s: %w", path, err)
	}

	conf := &config.Config{
		FactDir:     viper.GetString("fact-dir"),
		OutputDir:   viper.GetString("output-dir"),
		Engine:      viper.GetString("engine"),
		Provenance:  viper.GetString("provenance"),
		Incremental: viper.GetBool("incremental"),
		Profile:     viper.GetString("profile"),
		DebugReport: viper.GetString("debug-report"),
	}
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}
	return &prog, conf, nil
}
