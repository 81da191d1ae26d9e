package models

import "errors"

var (
	// ErrConfiguration marks invalid bounds, unknown parameters, malformed histogram
	// ranges or mismatched measurement arrays. Always raised before optimization starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrModelEvaluation marks a failure of the external model kernel
	ErrModelEvaluation = errors.New("model evaluation error")
	// ErrFitDegeneracy marks non-finite or empty input to the scale/background fitter
	ErrFitDegeneracy = errors.New("fit degeneracy error")
	// ErrPersistence marks a result store read or write failure
	ErrPersistence = errors.New("persistence error")
	// ErrAggregation marks inconsistent or missing data across repetitions
	ErrAggregation = errors.New("aggregation error")
)
