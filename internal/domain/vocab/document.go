package vocab

import "strconv"

// Publisher is stamped on every expansion document.
const Publisher = "PHIN-VADS"

// Index collections and the fixed document types used inside them.
const (
	CollectionCodeSystems      = "code_systems"
	CollectionValueSets        = "valuesets"
	CollectionCodes            = "codes"
	CollectionValueSetVersions = "valueset_versions"

	TypeCodeSystem = "code_system"
	TypeValueSet   = "valueset"

	// ExpansionContainsPath is the array grown page by page during a version sync.
	ExpansionContainsPath = "expansion.contains"
)

// Collections lists every collection that must exist before a sync writes.
var Collections = []string{
	CollectionCodes,
	CollectionCodeSystems,
	CollectionValueSets,
	CollectionValueSetVersions,
}

// CodeSystemDocument is the indexed form of a CodeSystem.
type CodeSystemDocument struct {
	OID                           string  `json:"oid"`
	ID                            string  `json:"id"`
	Name                          string  `json:"name"`
	DefinitionText                *string `json:"definitionText"`
	Status                        string  `json:"status"`
	StatusDate                    *string `json:"statusDate"`
	Version                       *string `json:"version"`
	VersionDescription            *string `json:"versionDescription"`
	AcquiredDate                  *string `json:"acquiredDate"`
	EffectiveDate                 *string `json:"effectiveDate"`
	ExpiryDate                    *string `json:"expiryDate"`
	AssigningAuthorityVersionName *string `json:"assigningAuthorityVersionName"`
	AssigningAuthorityReleaseDate *string `json:"assigningAuthorityReleaseDate"`
	DistributionSourceVersionName *string `json:"distributionSourceVersionName"`
	DistributionSourceReleaseDate *string `json:"distributionSourceReleaseDate"`
	DistributionSourceID          *string `json:"distributionSourceId"`
	SDOCreateDate                 *string `json:"sdoCreateDate"`
	LastRevisionDate              *string `json:"lastRevisionDate"`
	SDOReleaseDate                *string `json:"sdoReleaseDate"`
}

func (cs *CodeSystem) ToDocument() CodeSystemDocument {
	return CodeSystemDocument{
		OID:                           cs.OID,
		ID:                            cs.ID,
		Name:                          cs.Name,
		DefinitionText:                cs.DefinitionText,
		Status:                        cs.Status,
		StatusDate:                    cs.StatusDate,
		Version:                       cs.Version,
		VersionDescription:            cs.VersionDescription,
		AcquiredDate:                  cs.AcquiredDate,
		EffectiveDate:                 cs.EffectiveDate,
		ExpiryDate:                    cs.ExpiryDate,
		AssigningAuthorityVersionName: cs.AssigningAuthorityVersionName,
		AssigningAuthorityReleaseDate: cs.AssigningAuthorityReleaseDate,
		DistributionSourceVersionName: cs.DistributionSourceVersionName,
		DistributionSourceReleaseDate: cs.DistributionSourceReleaseDate,
		DistributionSourceID:          cs.DistributionSourceID,
		SDOCreateDate:                 cs.SDOCreateDate,
		LastRevisionDate:              cs.LastRevisionDate,
		SDOReleaseDate:                cs.SDOReleaseDate,
	}
}

// CodeSystemConceptDocument is the indexed form of a CodeSystemConcept.
type CodeSystemConceptDocument struct {
	ID                              string  `json:"id"`
	Name                            *string `json:"name"`
	CodeSystemOID                   string  `json:"codeSystemOid"`
	ConceptCode                     string  `json:"conceptCode"`
	SDOPreferredDesignation         *string `json:"sdoPreferredDesignation"`
	DefinitionText                  *string `json:"definitionText"`
	PreCoordinatedFlag              *bool   `json:"preCoordinatedFlag"`
	PreCoordinatedConceptNote       *string `json:"preCoordinatedConceptNote"`
	SDOConceptCreatedDate           *string `json:"sdoConceptCreatedDate"`
	SDOConceptRevisionDate          *string `json:"sdoConceptRevisionDate"`
	Status                          *string `json:"status"`
	StatusDate                      *string `json:"statusDate"`
	SDOConceptStatus                *string `json:"sdoConceptStatus"`
	SDOConceptStatusDate            *string `json:"sdoConceptStatusDate"`
	SupersededByCodeSystemConceptID *string `json:"supersededByCodeSystemConceptId"`
	UMLSCUI                         *string `json:"umlsCui"`
	UMLSAUI                         *string `json:"umlsAui"`
}

func (c *CodeSystemConcept) ToDocument() CodeSystemConceptDocument {
	return CodeSystemConceptDocument{
		ID:                              c.ID,
		Name:                            c.Name,
		CodeSystemOID:                   c.CodeSystemOID,
		ConceptCode:                     c.ConceptCode,
		SDOPreferredDesignation:         c.SDOPreferredDesignation,
		DefinitionText:                  c.DefinitionText,
		PreCoordinatedFlag:              c.PreCoordinatedFlag,
		PreCoordinatedConceptNote:       c.PreCoordinatedConceptNote,
		SDOConceptCreatedDate:           c.SDOConceptCreatedDate,
		SDOConceptRevisionDate:          c.SDOConceptRevisionDate,
		Status:                          c.Status,
		StatusDate:                      c.StatusDate,
		SDOConceptStatus:                c.SDOConceptStatus,
		SDOConceptStatusDate:            c.SDOConceptStatusDate,
		SupersededByCodeSystemConceptID: c.SupersededByCodeSystemConceptID,
		UMLSCUI:                         c.UMLSCUI,
		UMLSAUI:                         c.UMLSAUI,
	}
}

// ValueSetVersionDocument is a version entry nested in a ValueSetDocument.
type ValueSetVersionDocument struct {
	ID                            string  `json:"id"`
	ValueSetOID                   string  `json:"valueSetOid"`
	VersionNumber                 int     `json:"versionNumber"`
	Description                   *string `json:"description"`
	Status                        *string `json:"status"`
	StatusDate                    *string `json:"statusDate"`
	AssigningAuthorityText        *string `json:"assigningAuthorityText"`
	AssigningAuthorityReleaseDate *string `json:"assigningAuthorityReleaseDate"`
	NoteText                      *string `json:"noteText"`
	EffectiveDate                 *string `json:"effectiveDate"`
	ExpiryDate                    *string `json:"expiryDate"`
}

func (v *ValueSetVersion) ToDocument() ValueSetVersionDocument {
	return ValueSetVersionDocument{
		ID:                            v.ID,
		ValueSetOID:                   v.ValueSetOID,
		VersionNumber:                 v.VersionNumber,
		Description:                   v.Description,
		Status:                        v.Status,
		StatusDate:                    v.StatusDate,
		AssigningAuthorityText:        v.AssigningAuthorityText,
		AssigningAuthorityReleaseDate: v.AssigningAuthorityReleaseDate,
		NoteText:                      v.NoteText,
		EffectiveDate:                 v.EffectiveDate,
		ExpiryDate:                    v.ExpiryDate,
	}
}

// ValueSetDocument is the indexed form of a value set and all its versions.
type ValueSetDocument struct {
	ID                       string                    `json:"id"`
	OID                      string                    `json:"oid"`
	Name                     string                    `json:"name"`
	Code                     *string                   `json:"code"`
	Status                   *string                   `json:"status"`
	StatusDate               *string                   `json:"statusDate"`
	DefinitionText           *string                   `json:"definitionText"`
	ScopeNoteText            *string                   `json:"scopeNoteText"`
	AssigningAuthorityID     *string                   `json:"assigningAuthorityId"`
	ValueSetCreatedDate      *string                   `json:"valueSetCreatedDate"`
	ValueSetLastRevisionDate *string                   `json:"valueSetLastRevisionDate"`
	Versions                 []ValueSetVersionDocument `json:"versions"`
}

func (vs *ValueSetWithVersions) ToDocument() ValueSetDocument {
	v := vs.ValueSet
	doc := ValueSetDocument{
		ID:                       v.ID,
		OID:                      v.OID,
		Name:                     v.Name,
		Code:                     v.Code,
		Status:                   v.Status,
		StatusDate:               v.StatusDate,
		DefinitionText:           v.DefinitionText,
		ScopeNoteText:            v.ScopeNoteText,
		AssigningAuthorityID:     v.AssigningAuthorityID,
		ValueSetCreatedDate:      v.ValueSetCreatedDate,
		ValueSetLastRevisionDate: v.ValueSetLastRevisionDate,
		Versions:                 make([]ValueSetVersionDocument, 0, len(vs.Versions)),
	}
	for i := range vs.Versions {
		doc.Versions = append(doc.Versions, vs.Versions[i].ToDocument())
	}
	return doc
}

// ValueSetConceptDocument is one entry of an expansion's contains list.
type ValueSetConceptDocument struct {
	System            string  `json:"system"`
	Code              string  `json:"code"`
	Display           *string `json:"display"`
	Description       *string `json:"description"`
	ValueSetVersionID string  `json:"valueSetVersionId"`
}

func (c *ValueSetConcept) ToDocument() ValueSetConceptDocument {
	return ValueSetConceptDocument{
		System:            c.CodeSystemOID,
		Code:              c.ConceptCode,
		Display:           c.CodeSystemConceptName,
		Description:       c.DefinitionText,
		ValueSetVersionID: c.ValueSetVersionID,
	}
}

// Identifier is a FHIR-style business identifier.
type Identifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// Expansion holds the materialized concepts of a value set version.
type Expansion struct {
	Identifier *string                   `json:"identifier"`
	Timestamp  *string                   `json:"timestamp"`
	Contains   []ValueSetConceptDocument `json:"contains"`
}

// ExpansionDocument is the FHIR ValueSet-shaped document stored per version.
type ExpansionDocument struct {
	Version     int          `json:"version"`
	Name        string       `json:"name"`
	Status      *string      `json:"status"`
	Description *string      `json:"description"`
	Publisher   string       `json:"publisher"`
	Identifier  []Identifier `json:"identifier"`
	Expansion   Expansion    `json:"expansion"`
}

// NewExpansionDocument builds the expansion document for one version of vs.
// A nil contains slice is stored as an empty list so later appends have a target.
func NewExpansionDocument(vs *ValueSet, versionNumber int, contains []ValueSetConceptDocument) ExpansionDocument {
	if contains == nil {
		contains = []ValueSetConceptDocument{}
	}
	return ExpansionDocument{
		Version:     versionNumber,
		Name:        vs.Name,
		Status:      vs.Status,
		Description: vs.DefinitionText,
		Publisher:   Publisher,
		Identifier:  []Identifier{{System: "urn:ietf:rfc:3986", Value: "urn:oid:" + vs.OID}},
		Expansion:   Expansion{Contains: contains},
	}
}

// VersionDocumentID is the id of a version's expansion document.
func VersionDocumentID(versionNumber int) string {
	return strconv.Itoa(versionNumber)
}
