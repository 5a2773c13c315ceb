package model

import (
	"encoding/json"
	"fmt"
)

// ExamRecord represents a single imaging exam returned by an AIR search.
//
// The decoded fields cover everything the client needs for filtering,
// output naming, and the accessions report. Raw preserves the complete
// search payload exactly as the server sent it, because the series and
// download/start endpoints expect the exam object echoed back verbatim.
//
// ExamRecord is immutable once returned by the search call.
type ExamRecord struct {
	// PatientID is the medical record number (MRN) of the patient.
	PatientID string `json:"patientId"`

	// AccessionNumber uniquely identifies the exam. May be empty in
	// rare cases; output naming falls back to an index-based name.
	AccessionNumber string `json:"accessionNumber"`

	// Modality is the imaging modality, e.g. "MR" or "CT".
	Modality string `json:"modality"`

	// Description is the exam description as entered at the scanner.
	Description string `json:"description"`

	// DateTime is the exam timestamp as reported by the server.
	// Kept as a string; the client never interprets it.
	DateTime string `json:"dateTime"`

	// PatientSex is the patient sex code ("M", "F", "O", ...).
	PatientSex string `json:"patientSex"`

	// Birthdate is the patient birth date as reported by the server.
	Birthdate string `json:"birthdate"`

	// ImageCount is the number of images in the exam.
	ImageCount int `json:"imageCount"`

	// Raw is the untouched JSON payload for this exam. It is sent back
	// to the server when listing series and starting an archive job.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the raw payload.
func (e *ExamRecord) UnmarshalJSON(data []byte) error {
	type plain ExamRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ExamRecord(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Label returns a short human-readable identifier for log messages,
// preferring the accession number.
func (e ExamRecord) Label() string {
	if e.AccessionNumber != "" {
		return e.AccessionNumber
	}
	if e.PatientID != "" {
		return fmt.Sprintf("mrn %s", e.PatientID)
	}
	return "exam"
}

// SeriesRecord represents one series within an exam.
//
// Like ExamRecord, the raw payload is retained so the download/start
// call can echo the selected series back to the server unchanged.
type SeriesRecord struct {
	// Description is the series description, the only field the client
	// inspects (for inclusion filtering).
	Description string `json:"description"`

	// Raw is the untouched JSON payload for this series.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the description and retains the raw payload.
func (s *SeriesRecord) UnmarshalJSON(data []byte) error {
	type plain SeriesRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SeriesRecord(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Project is a project the authenticated user belongs to.
type Project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Profile is a server-side anonymization (de-identification) profile.
type Profile struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
