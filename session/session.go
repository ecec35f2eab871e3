// Package session encapsulates the sample-profile pass's state as a
// single explicit value, replacing what would otherwise be global
// mutable state (a sample hash table, an inline-sample hash table, a
// running max count, the compilation unit, the sample data path): one
// Session is constructed per compilation unit and threaded through
// the pass entry point, the same shape perfsession.Session wraps a
// perf.data file's state in.
package session

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ianlancetaylor/demangle"

	"github.com/spprof/spprof/annotate"
	"github.com/spprof/spprof/cfg"
	"github.com/spprof/spprof/ir"
	"github.com/spprof/spprof/spfile"
	"github.com/spprof/spprof/spindex"
)

// dataNameEnv overrides Config.DataName before the "sp.data" default
// is tried, for CI use (see DESIGN.md).
const dataNameEnv = "SPPROF_DATA"

// Config is the pass's configuration surface.
type Config struct {
	// Enable activates the pass.
	Enable bool
	// BranchProbabilities is the competing "read an edge-profile
	// instead" flag; mutually exclusive with Enable.
	BranchProbabilities bool
	// DataName overrides the sample file path; default "sp.data".
	DataName string
	// Dump enables the CFG dumper.
	Dump bool
	// DumpWriter receives one dump record per function/edge when
	// Dump is set; nil disables dumping even if Dump is true.
	DumpWriter io.Writer
}

// Resolve returns the sample file path to open: Config.DataName if
// set, else $SPPROF_DATA if set, else "sp.data".
func (c *Config) Resolve() string {
	if c.DataName != "" {
		return c.DataName
	}
	if v := os.Getenv(dataNameEnv); v != "" {
		return v
	}
	return "sp.data"
}

// Session is the pass-wide state: the sample index, configuration,
// and bookkeeping accumulated while annotating a compilation unit's
// functions.
type Session struct {
	Config Config
	Index  *spindex.Index

	Annotator *annotate.Annotator
	Smoother  *cfg.Smoother
	Estimator cfg.ProbabilityEstimator

	// Diag receives user-visible diagnostics; nil discards them.
	// Defaults to writing to os.Stderr via log.
	Diag spfile.Diag

	// Adopted and Discarded count functions whose smoothed
	// profile was kept vs rejected by cfg.Adopt.
	Adopted, Discarded int

	estimated map[*ir.Function]bool
}

// Init opens the configured sample file (via os.Open) and builds the
// index from it. It is the production entry point; tests and callers
// that already have an in-memory or otherwise-opened profile should
// use InitFrom instead, the same split perffile draws between Open
// and New.
func Init(cfg_ Config) (*Session, error) {
	if !cfg_.Enable || cfg_.BranchProbabilities {
		return InitFrom(cfg_, nil)
	}
	path := cfg_.Resolve()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sample file %q: %w", path, err)
	}
	defer f.Close()
	return InitFrom(cfg_, f)
}

// InitFrom builds the sample index from r and returns the ready-to-use
// Session. If BranchProbabilities and Enable are both set, sample
// profiling is disabled with a diagnostic and InitFrom returns a
// Session with Enable cleared and no index; r is not consulted in
// that case and may be nil. If the file yields
// zero samples, Enable is likewise cleared (the "no available data"
// disable path).
func InitFrom(cfg_ Config, r io.ReaderAt) (*Session, error) {
	s := &Session{
		Config:    cfg_,
		Diag:      defaultDiag,
		Smoother:  cfg.New(),
		Estimator: cfg.Uniform{},
		estimated: make(map[*ir.Function]bool),
	}

	if cfg_.BranchProbabilities && cfg_.Enable {
		s.Diag.Printf("branch-probabilities and sample-profile are mutually exclusive; disabling sample-profile now.")
		s.Config.Enable = false
		return s, nil
	}
	if !cfg_.Enable {
		return s, nil
	}

	path := cfg_.Resolve()
	raw, err := spfile.Load(r, s.Diag)
	if err != nil {
		return nil, fmt.Errorf("loading sample file %q: %w", path, err)
	}

	idx := spindex.New()
	n := idx.Build(raw, s.Diag)
	s.Index = idx
	s.Annotator = annotate.New(idx)

	if n == 0 {
		s.Diag.Printf("No available data in the sample file %q. Disable sample-profile now.", path)
		s.Config.Enable = false
		return s, nil
	}
	s.Diag.Printf("There are %d samples in file %q.", n, path)

	return s, nil
}

// AnnotateFunction runs the pass entry point for one function:
// estimate static probabilities if not already done,
// annotate every block, smooth the CFG, and decide adoption. It is
// idempotent — a function already marked post-profile is skipped.
func (s *Session) AnnotateFunction(fn *ir.Function) error {
	if !s.Config.Enable || s.Index == nil {
		return nil
	}
	if s.estimated[fn] {
		return nil
	}
	s.estimated[fn] = true

	if !fn.ProbabilitiesEstimated {
		s.Estimator.Estimate(fn)
		fn.ProbabilitiesEstimated = true
	}

	annotated := 0
	for _, b := range fn.Blocks {
		stats := s.Annotator.Annotate(fn, b)
		if stats.SumInstr > 0 {
			annotated++
		}
	}

	if err := s.Smoother.Smooth(fn); err != nil {
		return fmt.Errorf("smoothing %s: %w", fn.Name, err)
	}

	if cfg.Adopt(fn, annotated) {
		s.Adopted++
	} else {
		s.Discarded++
	}

	if name := demangle.Filter(fn.AsmName); name != fn.AsmName {
		s.Diag.Printf("%s demangles to %s", fn.AsmName, name)
	}

	if s.Config.Dump && s.Config.DumpWriter != nil {
		dumpFunction(s.Config.DumpWriter, fn)
	}

	return nil
}

// End releases the session's index. Safe to call more than once.
func (s *Session) End() {
	s.Index = nil
	s.Annotator = nil
}

func defaultDiag(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// dumpFunction writes the optional CFG dump format: one header line
// per function, then one record per edge.
func dumpFunction(w io.Writer, fn *ir.Function) {
	nEdges := 0
	for _, b := range fn.Blocks {
		nEdges += len(b.Out)
	}
	if fn.Entry != nil {
		nEdges += len(fn.Entry.Out)
	}
	entryCount := int64(0)
	if fn.Entry != nil {
		entryCount = fn.Entry.Count
	}
	fmt.Fprintf(w, ";;%d %d %d %s\n", fn.NumBasicBlocks(), nEdges, entryCount, fn.Name)

	dumpEdges := func(src *ir.BasicBlock) {
		for _, e := range src.Out {
			pct := int64(0)
			if entryCount > 0 {
				pct = e.Count * 100 / entryCount
			}
			fmt.Fprintf(w, "%d %d %d%% %d %d\n", e.Src.ID, e.Dst.ID, pct, e.Probability, e.Count)
		}
	}
	if fn.Entry != nil {
		dumpEdges(fn.Entry)
	}
	for _, b := range fn.Blocks {
		dumpEdges(b)
	}
}
