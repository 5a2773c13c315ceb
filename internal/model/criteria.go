package model

import "errors"

// ErrMissingIdentifier is returned when search criteria name neither an
// accession number nor a patient ID. Validation happens before any
// network call is made.
var ErrMissingIdentifier = errors.New("must specify either an accession number or a patient ID (MRN)")

// DateRange bounds a search by exam date. Empty values mean unbounded;
// the server also accepts a named label ("last week" style presets).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// SearchCriteria describes one exam search.
//
// At least one of AccessionNumber or PatientID must be set; everything
// else narrows the result set server-side.
type SearchCriteria struct {
	// AccessionNumber searches for a single exam by accession number.
	AccessionNumber string

	// PatientID searches for all exams of a patient (MRN search).
	PatientID string

	// DateRange optionally bounds the search by exam date.
	DateRange DateRange

	// Modality optionally restricts the search to one modality.
	Modality string
}

// Validate checks that the criteria identify at least one search key.
func (c SearchCriteria) Validate() error {
	if c.AccessionNumber == "" && c.PatientID == "" {
		return ErrMissingIdentifier
	}
	return nil
}
