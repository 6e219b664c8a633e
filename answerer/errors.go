package answerer

import "errors"

var (
	// ErrMissingArtifact is returned when a required model artifact is absent.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrOptionalArtifactMissing is returned when the similarity index file is
	// absent. Callers run without similarity search.
	ErrOptionalArtifactMissing = errors.New("optional artifact missing")

	// ErrInconsistentCatalog signals that the classifier and the label catalog
	// come from different training runs.
	ErrInconsistentCatalog = errors.New("inconsistent model/catalog")

	// ErrInference wraps failures of the classifier backend.
	ErrInference = errors.New("inference failed")

	// ErrClassifierRequired is returned by NewService without a classifier.
	ErrClassifierRequired = errors.New("classifier is required")

	// ErrCatalogRequired is returned by NewService without a label catalog.
	ErrCatalogRequired = errors.New("label catalog is required")
)
