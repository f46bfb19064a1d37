package vocab

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Export file names inside the output directory.
const (
	FileCodeSystems      = "code_systems.csv"
	FileCodes            = "codes.csv"
	FileValueSets        = "valuesets.csv"
	FileValueSetVersions = "valueset_versions.csv"
	FileValueSetConcepts = "valueset_concepts.csv"
)

// Exporter writes catalog contents as CSV files, one per document kind, using
// the same selection rules as Service. Files are truncated on every export.
type Exporter struct {
	catalog Catalog
	dir     string
	opts    Options
	logger  zerolog.Logger
}

func NewExporter(catalog Catalog, dir string, opts Options, logger zerolog.Logger) *Exporter {
	return &Exporter{
		catalog: catalog,
		dir:     dir,
		opts:    opts.withDefaults(),
		logger:  logger.With().Str("component", "export").Str("dir", dir).Logger(),
	}
}

// WithLogger returns a copy of e logging through logger.
func (e *Exporter) WithLogger(logger zerolog.Logger) *Exporter {
	cp := *e
	cp.logger = logger.With().Str("component", "export").Str("dir", e.dir).Logger()
	return &cp
}

// ExportCodeSystemMetadata writes one row per code system.
func (e *Exporter) ExportCodeSystemMetadata(ctx context.Context) (*Report, error) {
	list, err := e.catalog.ListCodeSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list code systems: %w", err)
	}

	f, err := e.create(FileCodeSystems, CodeSystemDocument{})
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := f.write(list[i].ToDocument()); err != nil {
			f.close()
			return nil, err
		}
	}
	return e.finish(f)
}

// ExportCodeSystems writes the concepts of every code system.
func (e *Exporter) ExportCodeSystems(ctx context.Context) (*Report, error) {
	list, err := e.catalog.ListCodeSystems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list code systems: %w", err)
	}
	return e.exportCodes(ctx, list)
}

// ExportCodeSystem writes the concepts of the code system identified by oid.
func (e *Exporter) ExportCodeSystem(ctx context.Context, oid string) (*Report, error) {
	cs, err := e.catalog.GetCodeSystem(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("get code system %s: %w", oid, err)
	}
	return e.exportCodes(ctx, []CodeSystem{*cs})
}

func (e *Exporter) exportCodes(ctx context.Context, list []CodeSystem) (*Report, error) {
	f, err := e.create(FileCodes, CodeSystemConceptDocument{})
	if err != nil {
		return nil, err
	}

	for i := range list {
		oid := list[i].OID
		log := e.logger.With().Str("code_system", oid).Logger()
		_, err := paginate(ctx, e.opts.PageSize, log, func(ctx context.Context, page, size int) (int, int, error) {
			concepts, total, err := e.catalog.ListCodeSystemConcepts(ctx, oid, page, size)
			if err != nil {
				return 0, 0, fmt.Errorf("fetch concepts of code system %s page %d: %w", oid, page, err)
			}
			for j := range concepts {
				if err := f.write(concepts[j].ToDocument()); err != nil {
					return 0, 0, err
				}
			}
			return len(concepts), total, nil
		})
		if err != nil {
			f.close()
			return nil, err
		}
	}
	return e.finish(f)
}

func (e *Exporter) groupVersions(sets []ValueSet, versions []ValueSetVersion) []ValueSetWithVersions {
	grouped, orphans := GroupVersions(sets, versions)
	if len(orphans) > 0 {
		e.logger.Warn().Int("count", len(orphans)).Msg("ignoring versions of unknown value sets")
	}
	return grouped
}

// ExportValueSetMetadata writes value sets and all their versions.
func (e *Exporter) ExportValueSetMetadata(ctx context.Context) (*Report, error) {
	sets, err := e.catalog.ListValueSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value sets: %w", err)
	}
	versions, err := e.catalog.ListValueSetVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value set versions: %w", err)
	}
	grouped := e.groupVersions(sets, versions)

	vsFile, err := e.create(FileValueSets, ValueSetDocument{})
	if err != nil {
		return nil, err
	}
	verFile, err := e.create(FileValueSetVersions, ValueSetVersionDocument{})
	if err != nil {
		vsFile.close()
		return nil, err
	}

	for i := range grouped {
		SortVersionsDesc(grouped[i].Versions)
		doc := grouped[i].ToDocument()
		if err := vsFile.write(doc); err != nil {
			vsFile.close()
			verFile.close()
			return nil, err
		}
		for _, v := range doc.Versions {
			if err := verFile.write(v); err != nil {
				vsFile.close()
				verFile.close()
				return nil, err
			}
		}
	}

	rep, err := e.finish(vsFile)
	if err != nil {
		verFile.close()
		return nil, err
	}
	verRep, err := e.finish(verFile)
	if err != nil {
		return nil, err
	}
	rep.Merge(verRep)
	return rep, nil
}

// ExportValueSets writes the expansion concepts of every value set, latest
// version only when UseLatest is set.
func (e *Exporter) ExportValueSets(ctx context.Context) (*Report, error) {
	sets, err := e.catalog.ListValueSets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value sets: %w", err)
	}
	versions, err := e.catalog.ListValueSetVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list value set versions: %w", err)
	}
	grouped := e.groupVersions(sets, versions)

	var selected []ValueSetVersion
	for i := range grouped {
		if e.opts.UseLatest {
			selected = append(selected, LatestOnly(grouped[i].Versions)...)
			continue
		}
		SortVersionsDesc(grouped[i].Versions)
		selected = append(selected, grouped[i].Versions...)
	}
	return e.exportValueSetConcepts(ctx, selected)
}

// ExportValueSet writes the expansion concepts of one value set's selected
// versions ("" for all, "latest", or an exact versionNumber).
func (e *Exporter) ExportValueSet(ctx context.Context, oid, version string) (*Report, error) {
	versions, err := e.catalog.ListValueSetVersionsFor(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("list versions of value set %s: %w", oid, err)
	}
	return e.exportValueSetConcepts(ctx, SelectVersions(versions, version))
}

func (e *Exporter) exportValueSetConcepts(ctx context.Context, versions []ValueSetVersion) (*Report, error) {
	f, err := e.create(FileValueSetConcepts, ValueSetConceptDocument{})
	if err != nil {
		return nil, err
	}

	rep := &Report{}
	for i := range versions {
		ver := versions[i]
		log := e.logger.With().Str("value_set", ver.ValueSetOID).Int("version", ver.VersionNumber).Logger()

		first, firstTotal, err := e.catalog.ListValueSetConcepts(ctx, ver.ID, 1, e.opts.PageSize)
		if err != nil {
			f.close()
			return nil, fmt.Errorf("fetch concepts of value set %s version %d: %w", ver.ValueSetOID, ver.VersionNumber, err)
		}
		if firstTotal > e.opts.MaxValueSetConcepts {
			log.Warn().Int("total", firstTotal).Msg("expansion too large, skipping version")
			rep.VersionsOversize++
			continue
		}

		_, err = paginate(ctx, e.opts.PageSize, log, func(ctx context.Context, page, size int) (int, int, error) {
			concepts, total := first, firstTotal
			if page > 1 {
				var err error
				concepts, total, err = e.catalog.ListValueSetConcepts(ctx, ver.ID, page, size)
				if err != nil {
					return 0, 0, fmt.Errorf("fetch concepts of value set %s version %d page %d: %w", ver.ValueSetOID, ver.VersionNumber, page, err)
				}
			}
			for j := range concepts {
				if err := f.write(concepts[j].ToDocument()); err != nil {
					return 0, 0, err
				}
			}
			return len(concepts), total, nil
		})
		if err != nil {
			f.close()
			return nil, err
		}
	}

	fileRep, err := e.finish(f)
	if err != nil {
		return nil, err
	}
	rep.Merge(fileRep)
	return rep, nil
}

// csvFile is an open export file and its row count.
type csvFile struct {
	path  string
	file  *os.File
	w     *csv.Writer
	rows  int
	start time.Time
}

func (e *Exporter) create(name string, proto any) (*csvFile, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", e.dir, err)
	}
	path := filepath.Join(e.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	f := &csvFile{path: path, file: file, w: csv.NewWriter(file), start: time.Now()}
	if err := f.w.Write(csvColumns(reflect.TypeOf(proto))); err != nil {
		f.close()
		return nil, fmt.Errorf("write header of %s: %w", path, err)
	}
	return f, nil
}

func (f *csvFile) write(doc any) error {
	if err := f.w.Write(csvRecord(reflect.ValueOf(doc))); err != nil {
		return fmt.Errorf("write row to %s: %w", f.path, err)
	}
	f.rows++
	return nil
}

func (f *csvFile) close() {
	f.w.Flush()
	_ = f.file.Close()
}

func (e *Exporter) finish(f *csvFile) (*Report, error) {
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		_ = f.file.Close()
		return nil, fmt.Errorf("flush %s: %w", f.path, err)
	}
	if err := f.file.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", f.path, err)
	}
	e.logger.Info().
		Str("file", f.path).
		Int("rows", f.rows).
		Dur("elapsed", time.Since(f.start)).
		Msg("export written")
	return &Report{RowsExported: f.rows, Files: []string{f.path}}, nil
}

// csvColumns returns the JSON names of t's scalar fields in declaration
// order. Slice fields are exported to their own files and left out.
func csvColumns(t reflect.Type) []string {
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Slice {
			continue
		}
		cols = append(cols, jsonName(field))
	}
	return cols
}

func csvRecord(v reflect.Value) []string {
	t := v.Type()
	var record []string
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Type.Kind() == reflect.Slice {
			continue
		}
		record = append(record, csvCell(v.Field(i)))
	}
	return record
}

func csvCell(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	default:
		return fmt.Sprint(v.Interface())
	}
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}
