package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rdpcache/datarecording"
	"github.com/sarchlab/rdpcache/mem/cache"
	"github.com/sarchlab/rdpcache/mem/cache/ibrdp"
	"github.com/sarchlab/rdpcache/mem/trace"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

type runOptions struct {
	tracePath string
	policy    string
	size      uint64
	ways      int
	line      uint64
	dbPath    string
	verbose   bool

	predictorSets int
	predictorWays int
	period        uint32
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a trace and report hits and misses per policy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	defaults := ibrdp.DefaultConfig()

	flags := runCmd.Flags()
	flags.StringVar(&opts.tracePath, "trace", "", "trace file to replay")
	flags.StringVar(&opts.policy, "policy", "both",
		"replacement policy: lru, ibrdp or both")
	flags.Uint64Var(&opts.size, "size", 32*cache.KB, "cache size in bytes")
	flags.IntVar(&opts.ways, "ways", 8, "way associativity")
	flags.Uint64Var(&opts.line, "line", 64, "cache line size in bytes")
	flags.StringVar(&opts.dbPath, "db", "",
		"record evictions and predictor updates into DB.sqlite3")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"log every eviction and predictor update")
	flags.IntVar(&opts.predictorSets, "predictor-sets", defaults.PredictorSets,
		"number of sets of the IBRDP predictor")
	flags.IntVar(&opts.predictorWays, "predictor-ways", defaults.PredictorWays,
		"associativity of the IBRDP predictor")
	flags.Uint32Var(&opts.period, "sampler-period", defaults.SamplerPeriod,
		"accesses between two IBRDP samples")

	return runCmd
}

func (o runOptions) policies() ([]string, error) {
	switch o.policy {
	case "lru", "ibrdp":
		return []string{o.policy}, nil
	case "both":
		return []string{"lru", "ibrdp"}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", o.policy)
	}
}

func (o runOptions) ibrdpConfig() (ibrdp.Config, error) {
	config := ibrdp.DefaultConfig()
	config.PredictorSets = o.predictorSets
	config.PredictorWays = o.predictorWays
	config.SamplerPeriod = o.period

	return config, config.Validate()
}

func log2(n uint64) (int, error) {
	if n == 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf("%d is not a power of 2", n)
	}

	l := 0
	for n > 1 {
		n >>= 1
		l++
	}

	return l, nil
}

func (o runOptions) buildCaches() ([]*cache.Comp, error) {
	policies, err := o.policies()
	if err != nil {
		return nil, err
	}

	log2Line, err := log2(o.line)
	if err != nil {
		return nil, fmt.Errorf("line size: %w", err)
	}

	if o.ways <= 0 || o.size%(o.line*uint64(o.ways)) != 0 || o.size == 0 {
		return nil, fmt.Errorf(
			"a %d-byte cache cannot have %d ways of %d-byte lines",
			o.size, o.ways, o.line)
	}

	config, err := o.ibrdpConfig()
	if err != nil {
		return nil, err
	}

	builder := cache.MakeBuilder().
		WithByteSize(o.size).
		WithWayAssociativity(o.ways).
		WithLog2CacheLineSize(log2Line).
		WithIBRDPConfig(config).
		WithColdMissTracking(1 << 20)

	caches := make([]*cache.Comp, 0, len(policies))
	for _, policy := range policies {
		caches = append(caches,
			builder.WithReplaceStrategy(policy).Build(policy))
	}

	return caches, nil
}

func runSimulation(out, errOut io.Writer, opts runOptions) error {
	if opts.tracePath == "" {
		return errors.New("--trace is required")
	}

	caches, err := opts.buildCaches()
	if err != nil {
		return err
	}

	if opts.verbose {
		attachLogHooks(log.New(errOut, "", 0), caches)
	}

	var tracer *trace.DBTracer

	if opts.dbPath != "" {
		recorder, err := datarecording.New(opts.dbPath)
		if err != nil {
			return err
		}
		defer recorder.Close()

		execRecorder := datarecording.NewExecRecorder(recorder)
		execRecorder.Start()
		execRecorder.Note("Trace", opts.tracePath)
		defer execRecorder.End()

		tracer = trace.NewDBTracer(recorder)
		for _, c := range caches {
			tracer.Attach(c)
		}
	}

	victims := countVictims(caches)

	if err := replay(opts.tracePath, caches); err != nil {
		return err
	}

	for _, c := range caches {
		printStats(out, c)

		if counter, ok := victims[c]; ok {
			fmt.Fprintf(out, "%-6s victims %s %d, %s %d\n",
				c.Name(),
				ibrdp.VictimByPrediction,
				counter.Count(ibrdp.VictimByPrediction),
				ibrdp.VictimByIdleTime,
				counter.Count(ibrdp.VictimByIdleTime))
		}

		if tracer != nil {
			tracer.Summarize(c, c.Name())
		}
	}

	reportMemory(out)

	return nil
}

func countVictims(caches []*cache.Comp) map[*cache.Comp]*hooking.CountHook {
	victims := make(map[*cache.Comp]*hooking.CountHook)

	for _, c := range caches {
		policy, ok := c.ReplacementPolicy().(*ibrdp.Policy)
		if !ok {
			continue
		}

		counter := hooking.NewCountHook(ibrdp.ClassifyVictim)
		policy.AcceptHook(counter)
		victims[c] = counter
	}

	return victims
}

func attachLogHooks(logger *log.Logger, caches []*cache.Comp) {
	for _, c := range caches {
		c.AcceptHook(hooking.NewLogHook(logger, cache.HookPosEvict))

		if policy, ok := c.ReplacementPolicy().(hooking.Hookable); ok {
			policy.AcceptHook(hooking.NewLogHook(logger,
				ibrdp.HookPosPredictorUpdate))
		}
	}
}

func replay(path string, caches []*cache.Comp) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := trace.NewReader(f)

	for {
		req, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		for _, c := range caches {
			c.Access(req)
		}
	}
}

func printStats(out io.Writer, c *cache.Comp) {
	stats := c.Stats()

	fmt.Fprintf(out,
		"%-6s accesses %d, hits %d, misses %d (cold %d), "+
			"evictions %d, write-backs %d, hit rate %.4f\n",
		c.Name(),
		stats.Accesses,
		stats.Hits,
		stats.Misses,
		stats.ColdMisses,
		stats.Evictions,
		stats.WriteBacks,
		stats.HitRate(),
	)
}

func reportMemory(out io.Writer) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("cannot inspect process: %v", err)
		return
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		log.Printf("cannot read memory usage: %v", err)
		return
	}

	fmt.Fprintf(out, "rss %.1f MB\n", float64(mem.RSS)/float64(cache.MB))
}
