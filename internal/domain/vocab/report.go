package vocab

// Report counts what a run did. Skipped entities were already indexed;
// oversize versions exceeded the concept ceiling.
type Report struct {
	CodeSystemsSynced  int `json:"codeSystemsSynced"`
	CodeSystemsSkipped int `json:"codeSystemsSkipped"`
	ValueSetsSynced    int `json:"valueSetsSynced"`
	ValueSetsSkipped   int `json:"valueSetsSkipped"`
	VersionsSynced     int `json:"versionsSynced"`
	VersionsSkipped    int `json:"versionsSkipped"`
	VersionsOversize   int `json:"versionsOversize"`
	ConceptsWritten    int `json:"conceptsWritten"`

	RowsExported int      `json:"rowsExported"`
	Files        []string `json:"files,omitempty"`
}

// Merge adds the counts of o to r.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.CodeSystemsSynced += o.CodeSystemsSynced
	r.CodeSystemsSkipped += o.CodeSystemsSkipped
	r.ValueSetsSynced += o.ValueSetsSynced
	r.ValueSetsSkipped += o.ValueSetsSkipped
	r.VersionsSynced += o.VersionsSynced
	r.VersionsSkipped += o.VersionsSkipped
	r.VersionsOversize += o.VersionsOversize
	r.ConceptsWritten += o.ConceptsWritten
	r.RowsExported += o.RowsExported
	r.Files = append(r.Files, o.Files...)
}
