package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vadssync/vadssync/internal/platform/telemetry"
)

// Operation names accepted by ParseOperation.
const (
	OpSyncAll           = "sync_all"
	OpSyncValueSets     = "sync_vs"
	OpSyncCodeSystems   = "sync_cs"
	OpCSVCodeSystems    = "csv_cs"
	OpCSVValueSets      = "csv_vs"
	OpCSVValueSetMeta   = "csv_vs_meta"
	OpCSVCodeSystemMeta = "csv_cs_meta"
)

var knownOperations = map[string]bool{
	OpSyncAll: true, OpSyncValueSets: true, OpSyncCodeSystems: true,
	OpCSVCodeSystems: true, OpCSVValueSets: true, OpCSVValueSetMeta: true, OpCSVCodeSystemMeta: true,
}

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrRunInProgress    = errors.New("another operation is running")
)

// OperationUsage describes the accepted operation strings.
const OperationUsage = `operations:
  sync_all                      sync all code systems, then all value sets
  sync_cs[:oid]                 sync all code systems, or one
  sync_vs[:oid[:version]]       sync all value sets, or one (version: latest or a number)
  csv_cs[:oid]                  export code system concepts to codes.csv
  csv_vs[:oid[:version]]        export value set concepts to valueset_concepts.csv
  csv_cs_meta                   export code systems to code_systems.csv
  csv_vs_meta                   export value sets and versions to valuesets.csv and valueset_versions.csv`

// Operation is a parsed "op[:oid[:version]]" selector.
type Operation struct {
	Name    string
	OID     string
	Version string
}

// ParseOperation splits s on ":". Segments beyond the version are ignored.
func ParseOperation(s string) (Operation, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	op := Operation{Name: parts[0]}
	if len(parts) > 1 {
		op.OID = parts[1]
	}
	if len(parts) > 2 {
		op.Version = parts[2]
	}
	if !knownOperations[op.Name] {
		return op, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
	}
	return op, nil
}

func (o Operation) String() string {
	s := o.Name
	if o.OID != "" {
		s += ":" + o.OID
		if o.Version != "" {
			s += ":" + o.Version
		}
	}
	return s
}

// IsSync reports whether the operation writes to the index.
func (o Operation) IsSync() bool {
	return strings.HasPrefix(o.Name, "sync_")
}

// Dispatcher runs operations one at a time against a Service and an Exporter.
type Dispatcher struct {
	service  *Service
	exporter *Exporter
	metrics  *telemetry.SyncMetrics
	logger   zerolog.Logger

	mu sync.Mutex
}

func NewDispatcher(service *Service, exporter *Exporter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{service: service, exporter: exporter, logger: logger}
}

func (d *Dispatcher) SetMetrics(m *telemetry.SyncMetrics) { d.metrics = m }

// Run executes op and returns what it did. It fails with ErrRunInProgress
// instead of waiting when another Run has not finished.
func (d *Dispatcher) Run(ctx context.Context, op Operation, force bool) (*Report, error) {
	if !knownOperations[op.Name] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
	}
	if !d.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer d.mu.Unlock()

	log := d.logger.With().
		Str("run_id", uuid.NewString()).
		Str("operation", op.String()).
		Bool("force", force).
		Logger()
	svc := d.service.WithForce(force).WithLogger(log)
	exp := d.exporter.WithLogger(log)

	done := d.metrics.RunStarted()
	defer done()
	start := time.Now()
	log.Info().Msg("operation started")

	rep, err := d.run(ctx, op, svc, exp)
	d.metrics.ObserveRun(op.Name, time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("operation failed")
		return rep, err
	}

	log.Info().
		Interface("report", rep).
		Dur("elapsed", time.Since(start)).
		Msg("operation finished")
	return rep, nil
}

func (d *Dispatcher) run(ctx context.Context, op Operation, svc *Service, exp *Exporter) (*Report, error) {
	if op.IsSync() {
		if err := svc.Prepare(ctx); err != nil {
			return nil, err
		}
	}

	switch op.Name {
	case OpSyncAll:
		rep := &Report{}
		csRep, err := svc.SyncCodeSystems(ctx)
		rep.Merge(csRep)
		if err != nil {
			return rep, err
		}
		vsRep, err := svc.SyncValueSets(ctx)
		rep.Merge(vsRep)
		return rep, err
	case OpSyncCodeSystems:
		if op.OID != "" {
			return svc.SyncCodeSystem(ctx, op.OID)
		}
		return svc.SyncCodeSystems(ctx)
	case OpSyncValueSets:
		if op.OID != "" {
			return svc.SyncValueSet(ctx, op.OID, op.Version)
		}
		return svc.SyncValueSets(ctx)
	case OpCSVCodeSystems:
		if op.OID != "" {
			return exp.ExportCodeSystem(ctx, op.OID)
		}
		return exp.ExportCodeSystems(ctx)
	case OpCSVValueSets:
		if op.OID != "" {
			return exp.ExportValueSet(ctx, op.OID, op.Version)
		}
		return exp.ExportValueSets(ctx)
	case OpCSVValueSetMeta:
		return exp.ExportValueSetMetadata(ctx)
	case OpCSVCodeSystemMeta:
		return exp.ExportCodeSystemMetadata(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
}
