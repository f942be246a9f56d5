// Package compile exposes the translator front door: it rewrites the AST
// for incremental evaluation when requested, derives the program analyses,
// and drives the planner to produce an IR program.
package compile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deltalog/deltalog/analysis"
	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/config"
	"github.com/deltalog/deltalog/debugreport"
	"github.com/deltalog/deltalog/internal/planner"
	"github.com/deltalog/deltalog/internal/transforms"
	"github.com/deltalog/deltalog/ir"
	"github.com/deltalog/deltalog/logging"
	"github.com/deltalog/deltalog/metrics"
)

// Error codes surfaced by Compile.
const (
	CodeUngroundedVariable           = planner.ErrUngroundedVariable
	CodeUnsupportedNodeInScanNesting = planner.ErrUnsupportedNodeInScanNesting
	CodeAggregateBodyMalformed       = planner.ErrAggregateBodyMalformed
	CodeUnknownFunctor               = planner.ErrUnknownFunctor
	CodeInvalidConfig                = "invalid_config"
)

// Error is a fatal compilation failure. No partial IR accompanies it.
type Error struct {
	Code     string
	Message  string
	Location ast.Location
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Location)
}

// Compiler translates one unit. Compile mutates the supplied program the
// way the rewrite pipeline requires (annotation columns, update-rule
// expansion, wildcard naming); callers needing the original must clone it
// first.
type Compiler struct {
	program *ast.Program
	conf    *config.Config
	logger  logging.Logger
	metrics metrics.Metrics
	report  *debugreport.Report
}

// New returns a new Compiler object.
func New() *Compiler {
	return &Compiler{
		conf:    &config.Config{},
		logger:  logging.NewNoOpLogger(),
		metrics: metrics.New(),
	}
}

// WithProgram sets the typed AST program to translate.
func (c *Compiler) WithProgram(program *ast.Program) *Compiler {
	c.program = program
	return c
}

// WithConfig sets the translator configuration.
func (c *Compiler) WithConfig(conf *config.Config) *Compiler {
	c.conf = conf
	return c
}

// WithLogger sets the logger.
func (c *Compiler) WithLogger(logger logging.Logger) *Compiler {
	c.logger = logger
	return c
}

// WithMetrics sets the metrics collector.
func (c *Compiler) WithMetrics(m metrics.Metrics) *Compiler {
	c.metrics = m
	return c
}

// WithDebugReport sets the report collaborator receiving the translated
// program dump when the debug-report option is set.
func (c *Compiler) WithDebugReport(report *debugreport.Report) *Compiler {
	c.report = report
	return c
}

// Compile translates the unit and returns the IR program.
func (c *Compiler) Compile(ctx context.Context) (*ir.Program, error) {
	if err := c.conf.Validate(); err != nil {
		return nil, &Error{Code: CodeInvalidConfig, Message: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	if c.conf.Incremental {
		timer := c.metrics.Timer(metrics.AstTransformIncremental)
		timer.Start()
		sccs := analysis.NewSCCGraph(c.program)
		recursive := analysis.NewRecursiveClauses(c.program, sccs)
		transforms.NewIncremental(c.program, sccs, recursive).Transform()
		timer.Stop()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// analyses are derived after the rewrite so the planner sees the
	// expanded rule set
	sccs := analysis.NewSCCGraph(c.program)
	order := analysis.NewTopologicalOrder(sccs)
	recursive := analysis.NewRecursiveClauses(c.program, sccs)
	types := analysis.NewTypeEnvironment(nil)
	schedule := analysis.NewRelationSchedule(c.program, sccs, order)

	timer := c.metrics.Timer(metrics.AstTranslateProgram)
	timer.Start()
	prog, err := planner.New(c.program).
		WithAnalyses(sccs, order, recursive, types, schedule).
		WithConfig(c.conf).
		WithLogger(c.logger).
		Plan()
	timer.Stop()
	if err != nil {
		var fault *planner.Error
		if errors.As(err, &fault) {
			return nil, &Error{Code: fault.Code, Message: fault.Message, Location: fault.Loc}
		}
		return nil, err
	}

	if c.conf.DebugReport != "" && c.report != nil {
		elapsed := time.Since(start)
		c.report.AddCodeSection("ram-program", fmt.Sprintf("IR Program (%s)", elapsed), ir.String(prog))
	}

	return prog, nil
}
