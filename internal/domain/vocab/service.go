package vocab

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vadssync/vadssync/internal/platform/index"
	"github.com/vadssync/vadssync/internal/platform/telemetry"
)

// Defaults used when Options leaves a limit at zero.
const (
	DefaultPageSize            = 10000
	DefaultMaxValueSetConcepts = 100000
)

// Options controls how a Service selects and reloads entities.
type Options struct {
	// Force re-syncs entities that are already indexed.
	Force bool
	// UseLatest limits a full value set sync to each value set's highest version.
	UseLatest bool
	// PageSize is the number of concepts requested per page.
	PageSize int
	// MaxValueSetConcepts is the largest expansion that will be materialized.
	MaxValueSetConcepts int
}

func DefaultOptions() Options {
	return Options{
		UseLatest:           true,
		PageSize:            DefaultPageSize,
		MaxValueSetConcepts: DefaultMaxValueSetConcepts,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxValueSetConcepts <= 0 {
		o.MaxValueSetConcepts = DefaultMaxValueSetConcepts
	}
	return o
}

// Service copies vocabulary from a Catalog into an index.Store.
type Service struct {
	catalog Catalog
	store   index.Store
	opts    Options
	metrics *telemetry.SyncMetrics
	logger  zerolog.Logger
}

func NewService(catalog Catalog, store index.Store, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		opts:    opts.withDefaults(),
		logger:  logger.With().Str("component", "sync").Logger(),
	}
}

func (s *Service) SetMetrics(m *telemetry.SyncMetrics) { s.metrics = m }

func (s *Service) Options() Options { return s.opts }

// WithForce returns a copy of s whose Force option is set to force.
func (s *Service) WithForce(force bool) *Service {
	cp := *s
	cp.opts.Force = force
	return &cp
}

// WithLogger returns a copy of s logging through logger.
func (s *Service) WithLogger(logger zerolog.Logger) *Service {
	cp := *s
	cp.logger = logger.With().Str("component", "sync").Logger()
	return &cp
}

// Prepare creates the index collections that sync operations write to.
func (s *Service) Prepare(ctx context.Context) error {
	if err := s.store.EnsureCollections(ctx, Collections); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}
	return nil
}

// SyncCodeSystems syncs every code system listed by the catalog.
func (s *Service) SyncCodeSystems(ctx context.Context) (*Report, error) {
	start := time.Now()
	list, err := s.catalog.ListCodeSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list code systems: %w", err)
	}
	s.logger.Info().Int("count", len(list)).Msg("syncing code systems")

	rep := &Report{}
	for i := range list {
		if err := s.syncCodeSystem(ctx, &list[i], rep); err != nil {
			return rep, err
		}
	}

	s.logger.Info().
		Int("synced", rep.CodeSystemsSynced).
		Int("skipped", rep.CodeSystemsSkipped).
		Dur("elapsed", time.Since(start)).
		Msg("code systems synced")
	return rep, nil
}

// SyncCodeSystem syncs the single code system identified by oid.
func (s *Service) SyncCodeSystem(ctx context.Context, oid string) (*Report, error) {
	cs, err := s.catalog.GetCodeSystem(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("get code system %s: %w", oid, err)
	}
	rep := &Report{}
	if err := s.syncCodeSystem(ctx, cs, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *Service) syncCodeSystem(ctx context.Context, cs *CodeSystem, rep *Report) error {
	log := s.logger.With().Str("code_system", cs.OID).Logger()

	if !s.opts.Force {
		if _, ok := s.store.Get(ctx, CollectionCodeSystems, TypeCodeSystem, cs.OID); ok {
			log.Debug().Msg("code system already indexed, skipping")
			rep.CodeSystemsSkipped++
			s.metrics.Skipped("code_system")
			return nil
		}
	}

	start := time.Now()
	log.Info().Str("name", cs.Name).Msg("syncing code system")

	fetched, err := paginate(ctx, s.opts.PageSize, log, func(ctx context.Context, page, size int) (int, int, error) {
		concepts, total, err := s.catalog.ListCodeSystemConcepts(ctx, cs.OID, page, size)
		if err != nil {
			return 0, 0, fmt.Errorf("fetch concepts of code system %s page %d: %w", cs.OID, page, err)
		}
		s.metrics.Fetched("code_system", len(concepts))

		items := make([]index.BulkItem, 0, len(concepts))
		for i := range concepts {
			items = append(items, index.BulkItem{Type: cs.OID, ID: concepts[i].ID, Doc: concepts[i].ToDocument()})
		}
		if err := s.store.BulkUpsert(ctx, CollectionCodes, items); err != nil {
			return 0, 0, fmt.Errorf("index concepts of code system %s: %w", cs.OID, err)
		}
		s.metrics.Written(CollectionCodes, len(items))
		return len(concepts), total, nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Upsert(ctx, CollectionCodeSystems, TypeCodeSystem, cs.OID, cs.ToDocument()); err != nil {
		return fmt.Errorf("index code system %s: %w", cs.OID, err)
	}
	s.metrics.Written(CollectionCodeSystems, 1)

	rep.CodeSystemsSynced++
	rep.ConceptsWritten += fetched
	log.Info().Int("concepts", fetched).Dur("elapsed", time.Since(start)).Msg("code system synced")
	return nil
}

// SyncValueSets syncs every value set listed by the catalog. Each value set
// gets its latest version (or all of them when UseLatest is off).
func (s *Service) SyncValueSets(ctx context.Context) (*Report, error) {
	start := time.Now()
	sets, err := s.catalog.ListValueSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value sets: %w", err)
	}
	versions, err := s.catalog.ListValueSetVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value set versions: %w", err)
	}

	grouped, orphans := GroupVersions(sets, versions)
	if len(orphans) > 0 {
		s.logger.Warn().Int("count", len(orphans)).Msg("ignoring versions of unknown value sets")
	}
	s.logger.Info().Int("count", len(grouped)).Msg("syncing value sets")

	rep := &Report{}
	for i := range grouped {
		g := &grouped[i]
		SortVersionsDesc(g.Versions)

		if !s.opts.Force {
			if _, ok := s.store.Get(ctx, CollectionValueSets, TypeValueSet, g.ValueSet.OID); ok {
				s.logger.Debug().Str("value_set", g.ValueSet.OID).Msg("value set already indexed, skipping")
				rep.ValueSetsSkipped++
				s.metrics.Skipped("valueset")
				continue
			}
		}

		selected := g.Versions
		if s.opts.UseLatest {
			selected = LatestOnly(g.Versions)
		}
		if err := s.syncValueSet(ctx, g, selected, rep); err != nil {
			return rep, err
		}
	}

	s.logger.Info().
		Int("synced", rep.ValueSetsSynced).
		Int("skipped", rep.ValueSetsSkipped).
		Int("oversize", rep.VersionsOversize).
		Dur("elapsed", time.Since(start)).
		Msg("value sets synced")
	return rep, nil
}

// SyncValueSet syncs one value set. version selects which versions are
// materialized: "" for all, "latest", or an exact versionNumber.
func (s *Service) SyncValueSet(ctx context.Context, oid, version string) (*Report, error) {
	vs, err := s.catalog.GetValueSet(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("get value set %s: %w", oid, err)
	}
	versions, err := s.catalog.ListValueSetVersionsFor(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("list versions of value set %s: %w", oid, err)
	}

	g := &ValueSetWithVersions{ValueSet: *vs, Versions: versions}
	SortVersionsDesc(g.Versions)

	selected := SelectVersions(g.Versions, version)
	if len(selected) == 0 {
		s.logger.Warn().Str("value_set", oid).Str("version", version).Msg("no version matches selection")
	}

	rep := &Report{}
	if err := s.syncValueSet(ctx, g, selected, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// syncValueSet materializes the selected versions, then writes the value set
// document carrying metadata for all of g's versions.
func (s *Service) syncValueSet(ctx context.Context, g *ValueSetWithVersions, selected []ValueSetVersion, rep *Report) error {
	log := s.logger.With().Str("value_set", g.ValueSet.OID).Logger()
	start := time.Now()
	log.Info().Str("name", g.ValueSet.Name).Int("versions", len(selected)).Msg("syncing value set")

	for i := range selected {
		if err := s.syncVersion(ctx, &g.ValueSet, &selected[i], rep, log); err != nil {
			return err
		}
	}

	if err := s.store.Upsert(ctx, CollectionValueSets, TypeValueSet, g.ValueSet.OID, g.ToDocument()); err != nil {
		return fmt.Errorf("index value set %s: %w", g.ValueSet.OID, err)
	}
	s.metrics.Written(CollectionValueSets, 1)

	rep.ValueSetsSynced++
	log.Info().Dur("elapsed", time.Since(start)).Msg("value set synced")
	return nil
}

// syncVersion writes the expansion document of one version. The first page
// is fetched before any write so an oversize version leaves no trace.
func (s *Service) syncVersion(ctx context.Context, vs *ValueSet, ver *ValueSetVersion, rep *Report, log zerolog.Logger) error {
	docID := VersionDocumentID(ver.VersionNumber)
	log = log.With().Int("version", ver.VersionNumber).Logger()

	if !s.opts.Force {
		if _, ok := s.store.Get(ctx, CollectionValueSetVersions, vs.OID, docID); ok {
			log.Debug().Msg("version already indexed, skipping")
			rep.VersionsSkipped++
			s.metrics.Skipped("valueset_version")
			return nil
		}
	}

	first, firstTotal, err := s.catalog.ListValueSetConcepts(ctx, ver.ID, 1, s.opts.PageSize)
	if err != nil {
		return fmt.Errorf("fetch concepts of value set %s version %d: %w", vs.OID, ver.VersionNumber, err)
	}
	if firstTotal > s.opts.MaxValueSetConcepts {
		log.Warn().
			Int("total", firstTotal).
			Int("max", s.opts.MaxValueSetConcepts).
			Msg("expansion too large, skipping version")
		rep.VersionsOversize++
		s.metrics.Oversize()
		return nil
	}

	expansion := NewExpansionDocument(vs, ver.VersionNumber, nil)
	if err := s.store.Upsert(ctx, CollectionValueSetVersions, vs.OID, docID, expansion); err != nil {
		return fmt.Errorf("index value set %s version %d: %w", vs.OID, ver.VersionNumber, err)
	}
	s.metrics.Written(CollectionValueSetVersions, 1)

	fetched, err := paginate(ctx, s.opts.PageSize, log, func(ctx context.Context, page, size int) (int, int, error) {
		concepts, total := first, firstTotal
		if page > 1 {
			var err error
			concepts, total, err = s.catalog.ListValueSetConcepts(ctx, ver.ID, page, size)
			if err != nil {
				return 0, 0, fmt.Errorf("fetch concepts of value set %s version %d page %d: %w", vs.OID, ver.VersionNumber, page, err)
			}
		}
		s.metrics.Fetched("valueset", len(concepts))
		if len(concepts) == 0 {
			return 0, total, nil
		}

		docs := make([]ValueSetConceptDocument, 0, len(concepts))
		for i := range concepts {
			docs = append(docs, concepts[i].ToDocument())
		}
		if err := s.store.AppendToArray(ctx, CollectionValueSetVersions, vs.OID, docID, ExpansionContainsPath, docs); err != nil {
			return 0, 0, fmt.Errorf("append concepts to value set %s version %d: %w", vs.OID, ver.VersionNumber, err)
		}
		return len(concepts), total, nil
	})
	if err != nil {
		return err
	}

	rep.VersionsSynced++
	rep.ConceptsWritten += fetched
	log.Info().Int("concepts", fetched).Msg("version synced")
	return nil
}

// pageFunc handles one page and reports how many items it held and the
// total the remote side claims.
type pageFunc func(ctx context.Context, page, pageSize int) (n, total int, err error)

// paginate calls fetch for pages 1, 2, ... until the cumulative count reaches
// the reported total. An empty page ends the loop early.
func paginate(ctx context.Context, pageSize int, log zerolog.Logger, fetch pageFunc) (int, error) {
	fetched := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		n, total, err := fetch(ctx, page, pageSize)
		if err != nil {
			return fetched, err
		}
		if n > 0 {
			log.Info().
				Int("from", fetched+1).
				Int("to", fetched+n).
				Int("total", total).
				Msg("synced concepts")
		}
		fetched += n

		if fetched >= total {
			return fetched, nil
		}
		if n == 0 {
			log.Warn().
				Int("page", page).
				Int("fetched", fetched).
				Int("total", total).
				Msg("empty page before reported total, stopping")
			return fetched, nil
		}
	}
}
