package trace

import (
	"github.com/sarchlab/rdpcache/datarecording"
	"github.com/sarchlab/rdpcache/mem/cache"
	"github.com/sarchlab/rdpcache/mem/cache/ibrdp"
	"github.com/sarchlab/rdpcache/sim/hooking"
)

// Table names used by DBTracer.
const (
	EvictionTable        = "evictions"
	PredictorUpdateTable = "predictor_updates"
	RunTable             = "runs"
)

// EvictionEntry is a row of the evictions table.
type EvictionEntry struct {
	Cache   string
	Access  uint64
	Address uint64
	SetID   int
	WayID   int
	Dirty   bool
	PC      uint64
}

// PredictorUpdateEntry is a row of the predictor_updates table.
type PredictorUpdateEntry struct {
	Cache       string
	Access      uint64
	PC          uint32
	Observation uint32
	Saturated   bool
}

// RunEntry is a row of the runs table.
type RunEntry struct {
	Cache      string
	Policy     string
	Accesses   uint64
	Hits       uint64
	Misses     uint64
	ColdMisses uint64
	Evictions  uint64
	WriteBacks uint64
	HitRate    float64
}

// A DBTracer is a hook that records the evictions and predictor training of
// caches into a database using the data recorder. Several caches can share
// one DBTracer.
type DBTracer struct {
	dataRecorder datarecording.DataRecorder
	names        map[hooking.Hookable]string
	accesses     map[string]uint64
}

// NewDBTracer creates the tables in dataRecorder.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		dataRecorder: dataRecorder,
		names:        make(map[hooking.Hookable]string),
		accesses:     make(map[string]uint64),
	}

	t.dataRecorder.CreateTable(EvictionTable, EvictionEntry{})
	t.dataRecorder.CreateTable(PredictorUpdateTable, PredictorUpdateEntry{})
	t.dataRecorder.CreateTable(RunTable, RunEntry{})

	return t
}

// Attach starts recording a cache, and its replacement policy if the policy
// accepts hooks.
func (t *DBTracer) Attach(c *cache.Comp) {
	t.names[c] = c.Name()
	c.AcceptHook(t)

	if policy, ok := c.ReplacementPolicy().(hooking.Hookable); ok {
		t.names[policy] = c.Name()
		policy.AcceptHook(t)
	}
}

// Func records one hook event.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	name, ok := t.names[ctx.Domain]
	if !ok {
		return
	}

	switch detail := ctx.Detail.(type) {
	case cache.AccessDetail:
		t.accesses[name]++
	case cache.EvictDetail:
		t.dataRecorder.InsertData(EvictionTable, EvictionEntry{
			Cache:   name,
			Access:  t.accesses[name],
			Address: detail.Address,
			SetID:   detail.SetID,
			WayID:   detail.WayID,
			Dirty:   detail.Dirty,
			PC:      detail.PC,
		})
	case ibrdp.PredictorUpdate:
		t.dataRecorder.InsertData(PredictorUpdateTable, PredictorUpdateEntry{
			Cache:       name,
			Access:      t.accesses[name],
			PC:          detail.PC,
			Observation: detail.Observation,
			Saturated:   detail.Saturated,
		})
	}
}

// Summarize records the final counters of a cache in the runs table.
func (t *DBTracer) Summarize(c *cache.Comp, policy string) {
	stats := c.Stats()

	t.dataRecorder.InsertData(RunTable, RunEntry{
		Cache:      c.Name(),
		Policy:     policy,
		Accesses:   stats.Accesses,
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		ColdMisses: stats.ColdMisses,
		Evictions:  stats.Evictions,
		WriteBacks: stats.WriteBacks,
		HitRate:    stats.HitRate(),
	})
}
