package vocab

import (
	"encoding/json"
	"sort"
	"testing"
)

func jsonKeys(t *testing.T, v any) []string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func assertKeys(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %d keys %v, got %d keys %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, got)
		}
	}
}

func TestCodeSystem_ToDocumentKeys(t *testing.T) {
	cs := &CodeSystem{
		OID:            "2.16.840.1.113883.6.238",
		Name:           "Race & Ethnicity - CDC",
		Status:         "Published",
		CodeSystemCode: strPtr("PH_RaceAndEthnicity_CDC"),
		HL7URI:         strPtr("urn:oid:2.16.840.1.113883.6.238"),
	}
	assertKeys(t, jsonKeys(t, cs.ToDocument()), []string{
		"oid", "id", "name", "definitionText", "status", "statusDate", "version",
		"versionDescription", "acquiredDate", "effectiveDate", "expiryDate",
		"assigningAuthorityVersionName", "assigningAuthorityReleaseDate",
		"distributionSourceVersionName", "distributionSourceReleaseDate",
		"distributionSourceId", "sdoCreateDate", "lastRevisionDate", "sdoReleaseDate",
	})
}

func TestCodeSystem_ToDocumentNullsMissingFields(t *testing.T) {
	cs := &CodeSystem{OID: "2.16.1", Name: "Race"}
	raw, err := json.Marshal(cs.ToDocument())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	v, ok := m["definitionText"]
	if !ok {
		t.Fatal("expected definitionText key to be present")
	}
	if v != nil {
		t.Errorf("expected definitionText null, got %v", v)
	}
}

func TestCodeSystemConcept_ToDocumentKeys(t *testing.T) {
	c := &CodeSystemConcept{ID: "c1", ConceptCode: "2106-3", HL7ConceptCode: strPtr("2106-3"), AlternateDesignations: []string{"white"}}
	assertKeys(t, jsonKeys(t, c.ToDocument()), []string{
		"id", "name", "codeSystemOid", "conceptCode", "sdoPreferredDesignation",
		"definitionText", "preCoordinatedFlag", "preCoordinatedConceptNote",
		"sdoConceptCreatedDate", "sdoConceptRevisionDate", "status", "statusDate",
		"sdoConceptStatus", "sdoConceptStatusDate", "supersededByCodeSystemConceptId",
		"umlsCui", "umlsAui",
	})
}

func TestValueSet_ToDocument(t *testing.T) {
	vs := &ValueSetWithVersions{
		ValueSet: ValueSet{ID: "vs-1", OID: "2.16.9", Name: "Race Category", HL7URI: strPtr("x")},
		Versions: []ValueSetVersion{{ID: "v2", ValueSetOID: "2.16.9", VersionNumber: 2}},
	}
	doc := vs.ToDocument()
	assertKeys(t, jsonKeys(t, doc), []string{
		"id", "oid", "name", "code", "status", "statusDate", "definitionText",
		"scopeNoteText", "assigningAuthorityId", "valueSetCreatedDate",
		"valueSetLastRevisionDate", "versions",
	})
	if len(doc.Versions) != 1 || doc.Versions[0].ID != "v2" {
		t.Errorf("expected one nested version, got %+v", doc.Versions)
	}
	assertKeys(t, jsonKeys(t, doc.Versions[0]), []string{
		"id", "valueSetOid", "versionNumber", "description", "status", "statusDate",
		"assigningAuthorityText", "assigningAuthorityReleaseDate", "noteText",
		"effectiveDate", "expiryDate",
	})
}

func TestValueSet_ToDocumentWithoutVersions(t *testing.T) {
	vs := &ValueSetWithVersions{ValueSet: ValueSet{OID: "2.16.9"}}
	raw, err := json.Marshal(vs.ToDocument())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if string(m["versions"]) != "[]" {
		t.Errorf("expected empty versions list, got %s", m["versions"])
	}
}

func TestValueSetConcept_ToDocument(t *testing.T) {
	c := &ValueSetConcept{
		CodeSystemOID:         "2.16.840.1.113883.6.238",
		ConceptCode:           "2106-3",
		CodeSystemConceptName: strPtr("White"),
		ValueSetVersionID:     "v2",
		ScopeNoteText:         strPtr("ignored"),
	}
	doc := c.ToDocument()
	assertKeys(t, jsonKeys(t, doc), []string{"system", "code", "display", "description", "valueSetVersionId"})
	if doc.System != c.CodeSystemOID || doc.Code != "2106-3" || *doc.Display != "White" {
		t.Errorf("unexpected mapping: %+v", doc)
	}
	if doc.Description != nil {
		t.Errorf("expected nil description, got %v", *doc.Description)
	}
}

func TestNewExpansionDocument(t *testing.T) {
	vs := &ValueSet{OID: "2.16.9", Name: "Race Category", Status: strPtr("Published"), DefinitionText: strPtr("Race")}
	doc := NewExpansionDocument(vs, 3, nil)

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"version":3,"name":"Race Category","status":"Published","description":"Race","publisher":"PHIN-VADS",` +
		`"identifier":[{"system":"urn:ietf:rfc:3986","value":"urn:oid:2.16.9"}],` +
		`"expansion":{"identifier":null,"timestamp":null,"contains":[]}}`
	if string(raw) != want {
		t.Errorf("unexpected expansion document:\n got: %s\nwant: %s", raw, want)
	}
}

func TestVersionDocumentID(t *testing.T) {
	if got := VersionDocumentID(12); got != "12" {
		t.Errorf("expected 12, got %q", got)
	}
}
