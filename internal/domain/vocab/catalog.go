package vocab

import "context"

// Catalog is the remote vocabulary service. Pages start at 1; the returned
// total is the authoritative size of the paged list.
type Catalog interface {
	ListCodeSystems(ctx context.Context) ([]CodeSystem, error)
	GetCodeSystem(ctx context.Context, oid string) (*CodeSystem, error)
	ListCodeSystemConcepts(ctx context.Context, oid string, page, pageSize int) ([]CodeSystemConcept, int, error)

	ListValueSets(ctx context.Context) ([]ValueSet, error)
	ListValueSetVersions(ctx context.Context) ([]ValueSetVersion, error)
	GetValueSet(ctx context.Context, oid string) (*ValueSet, error)
	ListValueSetVersionsFor(ctx context.Context, oid string) ([]ValueSetVersion, error)
	ListValueSetConcepts(ctx context.Context, versionID string, page, pageSize int) ([]ValueSetConcept, int, error)
}
