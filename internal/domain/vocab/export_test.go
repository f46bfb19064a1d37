package vocab

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestExportCodeSystemMetadata(t *testing.T) {
	m := newMockCatalog()
	m.codeSystems = []CodeSystem{
		{OID: "2.16.1", Name: "Race", Status: "Published", Version: strPtr("1.0")},
		{OID: "2.16.2", Name: "Ethnicity, CDC"},
	}
	dir := filepath.Join(t.TempDir(), "out")

	rep, err := NewExporter(m, dir, DefaultOptions(), zerolog.Nop()).ExportCodeSystemMetadata(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.RowsExported != 2 {
		t.Errorf("expected 2 rows, got %d", rep.RowsExported)
	}

	records := readCSV(t, filepath.Join(dir, FileCodeSystems))
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}
	header := records[0]
	if len(header) != 19 || header[0] != "oid" || header[18] != "sdoReleaseDate" {
		t.Errorf("unexpected header %v", header)
	}
	if records[1][6] != "1.0" {
		t.Errorf("expected version 1.0 in column 7, got %q", records[1][6])
	}
	if records[2][2] != "Ethnicity, CDC" {
		t.Errorf("expected quoted name to round-trip, got %q", records[2][2])
	}
	if records[2][3] != "" {
		t.Errorf("expected null definitionText as empty cell, got %q", records[2][3])
	}
}

func TestExportCodeSystems_PagesAllConcepts(t *testing.T) {
	m := newMockCatalog()
	m.codeSystems = []CodeSystem{{OID: "2.16.1"}, {OID: "2.16.2"}}
	m.csConcepts["2.16.1"] = makeCSConcepts("2.16.1", 5)
	m.csConcepts["2.16.2"] = makeCSConcepts("2.16.2", 2)
	dir := t.TempDir()

	rep, err := NewExporter(m, dir, Options{PageSize: 2}, zerolog.Nop()).ExportCodeSystems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.RowsExported != 7 {
		t.Errorf("expected 7 rows, got %d", rep.RowsExported)
	}
	records := readCSV(t, filepath.Join(dir, FileCodes))
	if records[0][0] != "id" || records[0][3] != "conceptCode" {
		t.Errorf("unexpected header %v", records[0])
	}
}

func TestExportCodeSystem_TruncatesPreviousRun(t *testing.T) {
	m := newMockCatalog()
	m.codeSystems = []CodeSystem{{OID: "2.16.1"}, {OID: "2.16.2"}}
	m.csConcepts["2.16.1"] = makeCSConcepts("2.16.1", 5)
	m.csConcepts["2.16.2"] = makeCSConcepts("2.16.2", 2)
	dir := t.TempDir()
	e := NewExporter(m, dir, DefaultOptions(), zerolog.Nop())

	if _, err := e.ExportCodeSystems(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExportCodeSystem(context.Background(), "2.16.2"); err != nil {
		t.Fatal(err)
	}

	records := readCSV(t, filepath.Join(dir, FileCodes))
	if len(records) != 3 {
		t.Errorf("expected only the targeted code system's 2 rows, got %d records", len(records))
	}
	for _, r := range records[1:] {
		if !strings.HasPrefix(r[0], "2.16.2-") {
			t.Errorf("unexpected row %v", r)
		}
	}
}

func TestExportValueSetMetadata(t *testing.T) {
	m := newMockCatalog()
	addValueSet(m, "2.16.9", map[int]int{1: 1, 2: 1})
	addValueSet(m, "2.16.10", map[int]int{1: 1})
	dir := t.TempDir()

	rep, err := NewExporter(m, dir, DefaultOptions(), zerolog.Nop()).ExportValueSetMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Files) != 2 {
		t.Errorf("expected 2 files, got %v", rep.Files)
	}

	sets := readCSV(t, filepath.Join(dir, FileValueSets))
	if len(sets) != 3 {
		t.Errorf("expected 2 value set rows, got %d records", len(sets))
	}
	for _, col := range sets[0] {
		if col == "versions" {
			t.Error("nested versions must not be a value set column")
		}
	}

	versions := readCSV(t, filepath.Join(dir, FileValueSetVersions))
	if len(versions) != 4 {
		t.Fatalf("expected 3 version rows, got %d records", len(versions))
	}
	if versions[1][2] != "2" || versions[2][2] != "1" {
		t.Errorf("expected versions of 2.16.9 in descending order, got %v and %v", versions[1], versions[2])
	}
}

func TestExportValueSets_LatestOnly(t *testing.T) {
	m := newMockCatalog()
	addValueSet(m, "2.16.9", map[int]int{1: 2, 2: 3})
	dir := t.TempDir()

	rep, err := NewExporter(m, dir, Options{UseLatest: true, PageSize: 2}, zerolog.Nop()).ExportValueSets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.RowsExported != 3 {
		t.Errorf("expected 3 rows from version 2, got %d", rep.RowsExported)
	}
	records := readCSV(t, filepath.Join(dir, FileValueSetConcepts))
	want := []string{"system", "code", "display", "description", "valueSetVersionId"}
	if strings.Join(records[0], ",") != strings.Join(want, ",") {
		t.Errorf("expected header %v, got %v", want, records[0])
	}
	if records[1][4] != "2.16.9-v2" {
		t.Errorf("expected rows of version 2, got %v", records[1])
	}
}

func TestExportValueSet_SelectionAndOversize(t *testing.T) {
	m := newMockCatalog()
	addValueSet(m, "2.16.9", map[int]int{1: 2, 2: 6})
	dir := t.TempDir()
	e := NewExporter(m, dir, Options{PageSize: 10, MaxValueSetConcepts: 5}, zerolog.Nop())

	rep, err := e.ExportValueSet(context.Background(), "2.16.9", "")
	if err != nil {
		t.Fatal(err)
	}
	if rep.VersionsOversize != 1 || rep.RowsExported != 2 {
		t.Errorf("expected version 2 skipped and 2 rows from version 1, got %+v", rep)
	}

	rep, err = e.ExportValueSet(context.Background(), "2.16.9", "3")
	if err != nil {
		t.Fatal(err)
	}
	if rep.RowsExported != 0 {
		t.Errorf("expected no rows for a missing version, got %d", rep.RowsExported)
	}
	if records := readCSV(t, filepath.Join(dir, FileValueSetConcepts)); len(records) != 1 {
		t.Errorf("expected header only, got %d records", len(records))
	}
}

func TestExportValueSets_WarnsAboutOrphanVersions(t *testing.T) {
	for name, export := range map[string]func(*Exporter) error{
		"metadata": func(e *Exporter) error { _, err := e.ExportValueSetMetadata(context.Background()); return err },
		"concepts": func(e *Exporter) error { _, err := e.ExportValueSets(context.Background()); return err },
	} {
		t.Run(name, func(t *testing.T) {
			m := newMockCatalog()
			addValueSet(m, "2.16.9", map[int]int{1: 1})
			m.versions = append(m.versions, ValueSetVersion{ID: "orphan", ValueSetOID: "9.9.9", VersionNumber: 1})
			var buf bytes.Buffer

			e := NewExporter(m, t.TempDir(), DefaultOptions(), zerolog.New(&buf))
			if err := export(e); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), "ignoring versions of unknown value sets") {
				t.Errorf("expected orphan warning, got %q", buf.String())
			}
			if !strings.Contains(buf.String(), `"count":1`) {
				t.Errorf("expected orphan count 1, got %q", buf.String())
			}
			if got := m.countCalls("vs:orphan:1"); got != 0 {
				t.Error("orphan version must not be fetched")
			}
		})
	}
}
