package vocab

// CodeSystem is a PHIN VADS code system as returned by the remote catalog.
type CodeSystem struct {
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

	// Not carried into the index.
	CodeSystemCode       *string `json:"codeSystemCode"`
	HL7URI               *string `json:"hl7Uri"`
	HL7OID               *string `json:"hl7Oid"`
	AssigningAuthorityID *string `json:"assigningAuthorityId"`
	LegacyFlag           *bool   `json:"legacyFlag"`
}

// CodeSystemConcept is a single coded term belonging to one code system.
type CodeSystemConcept struct {
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

	// Not carried into the index.
	HL7ConceptCode        *string  `json:"hl7ConceptCode"`
	AlternateDesignations []string `json:"alternateDesignations"`
}

// ValueSet is a PHIN VADS value set. Versions are fetched separately.
type ValueSet struct {
	ID                       string  `json:"id"`
	OID                      string  `json:"oid"`
	Name                     string  `json:"name"`
	Code                     *string `json:"code"`
	Status                   *string `json:"status"`
	StatusDate               *string `json:"statusDate"`
	DefinitionText           *string `json:"definitionText"`
	ScopeNoteText            *string `json:"scopeNoteText"`
	AssigningAuthorityID     *string `json:"assigningAuthorityId"`
	ValueSetCreatedDate      *string `json:"valueSetCreatedDate"`
	ValueSetLastRevisionDate *string `json:"valueSetLastRevisionDate"`

	// Not carried into the index.
	HL7URI     *string `json:"hl7Uri"`
	LegacyFlag *bool   `json:"legacyFlag"`
}

// ValueSetVersion is a point-in-time snapshot of a value set's membership.
type ValueSetVersion struct {
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

// ValueSetConcept is one member of a value set version's expansion.
type ValueSetConcept struct {
	ID                    string  `json:"id"`
	CodeSystemOID         string  `json:"codeSystemOid"`
	ConceptCode           string  `json:"conceptCode"`
	CodeSystemConceptName *string `json:"codeSystemConceptName"`
	DefinitionText        *string `json:"definitionText"`
	ValueSetVersionID     string  `json:"valueSetVersionId"`

	// Not carried into the index.
	Status        *string `json:"status"`
	ScopeNoteText *string `json:"scopeNoteText"`
}

// ValueSetWithVersions pairs a value set with the versions that reference it.
type ValueSetWithVersions struct {
	ValueSet ValueSet
	Versions []ValueSetVersion
}
