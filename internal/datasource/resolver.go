package datasource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/store"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Resolver yields the records of each source at most once per process. Dynamic
// sources are served from the persistent cache while fresh and re-run otherwise.
type Resolver struct {
	mu      sync.Mutex
	sources map[string]Source
	order   []string
	memo    map[string][]Record
	fetched map[string]time.Time

	store  store.Store
	runner Runner
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Resolver)

func WithRunner(runner Runner) Option {
	return func(r *Resolver) { r.runner = runner }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithClock replaces time.Now, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(sources []Source, st store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		sources: make(map[string]Source, len(sources)),
		memo:    make(map[string][]Record),
		fetched: make(map[string]time.Time),
		store:   st,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}
	if r.runner == nil {
		r.runner = bash.NewRunner(r.logger)
	}

	for _, s := range sources {
		if _, dup := r.sources[s.SourceName()]; dup {
			continue
		}
		r.sources[s.SourceName()] = s
		r.order = append(r.order, s.SourceName())
	}
	return r
}

// ResolveOne returns the records of the named source, or nil for an unknown
// name. Failures of a dynamic source yield an empty list for the rest of the
// process and are not written to the cache.
func (r *Resolver) ResolveOne(ctx context.Context, name string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if records, ok := r.memo[name]; ok {
		return records
	}

	src, ok := r.sources[name]
	if !ok {
		r.logger.Debug("unknown data source", zap.String("source", name))
		return nil
	}

	var records []Record
	switch s := src.(type) {
	case *Static:
		records = s.Records
	case *Dynamic:
		records = r.resolveDynamic(ctx, s)
	}
	if records == nil {
		records = []Record{}
	}

	r.memo[name] = records
	return records
}

// ResolveAll resolves every static source, then every dynamic source in
// ascending priority. Sources with equal priority keep their declared order.
func (r *Resolver) ResolveAll(ctx context.Context) {
	var statics []string
	var dynamics []*Dynamic
	for _, name := range r.order {
		switch s := r.sources[name].(type) {
		case *Static:
			statics = append(statics, name)
		case *Dynamic:
			dynamics = append(dynamics, s)
		}
	}
	sort.SliceStable(dynamics, func(i, j int) bool {
		return dynamics[i].Priority < dynamics[j].Priority
	})

	for _, name := range statics {
		r.ResolveOne(ctx, name)
	}
	for _, d := range dynamics {
		r.ResolveOne(ctx, d.Name)
	}
}

func (r *Resolver) resolveDynamic(ctx context.Context, d *Dynamic) []Record {
	now := r.now()

	if entry, ok := r.store.Entry(d.Name); ok && now.Unix()-entry.Timestamp <= int64(d.CacheTTL/time.Second) {
		r.logger.Debug("data source served from cache", zap.String("source", d.Name), zap.Int64("timestamp", entry.Timestamp))
		r.fetched[d.Name] = time.Unix(entry.Timestamp, 0)
		return lo.Map(entry.Data, func(m map[string]string, _ int) Record { return Record(m) })
	}

	runCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.runner.Output(runCtx, d.Command)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil {
		r.logger.Warn("data source command failed",
			zap.String("source", d.Name),
			zap.String("command", d.Command),
			zap.Duration("timeout", d.Timeout),
			zap.Error(err))
		return nil
	}

	records, err := ParseOutput(out, d.Mapping)
	if err != nil {
		r.logger.Warn("data source output is not usable",
			zap.String("source", d.Name),
			zap.String("command", d.Command),
			zap.Error(err))
		return nil
	}

	r.logger.Debug("data source resolved",
		zap.String("source", d.Name),
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)))

	entry := store.Entry{
		Timestamp: now.Unix(),
		Data:      lo.Map(records, func(rec Record, _ int) map[string]string { return map[string]string(rec) }),
	}
	if err := r.store.PutEntry(d.Name, entry); err != nil {
		r.logger.Warn("failed to save data source cache", zap.String("source", d.Name), zap.Error(err))
	}
	r.fetched[d.Name] = now

	return records
}

// SourceInfo describes a declared source for help output.
type SourceInfo struct {
	Name    string
	Dynamic bool
	Command string
	// CachedAt is the fetch time of the cached data, zero when nothing is cached.
	CachedAt time.Time
	Records  int
	Resolved bool
}

// Sources lists every declared source in declared order without resolving any.
func (r *Resolver) Sources() []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]SourceInfo, 0, len(r.order))
	for _, name := range r.order {
		info := SourceInfo{Name: name}
		if d, ok := r.sources[name].(*Dynamic); ok {
			info.Dynamic = true
			info.Command = d.Command
			if at, ok := r.fetched[name]; ok {
				info.CachedAt = at
			} else if entry, ok := r.store.Entry(name); ok {
				info.CachedAt = time.Unix(entry.Timestamp, 0)
			}
		}
		if records, ok := r.memo[name]; ok {
			info.Resolved = true
			info.Records = len(records)
		} else if s, ok := r.sources[name].(*Static); ok {
			info.Records = len(s.Records)
		}
		infos = append(infos, info)
	}
	return infos
}
