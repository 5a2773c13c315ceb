// Package model defines the core data structures used throughout
// the air-download client.
//
// # ExamRecord and SeriesRecord
//
// Exams and series are returned by the AIR search endpoints. Both types
// decode the handful of fields the client actually inspects and keep the
// untouched JSON payload in Raw, because the series and download/start
// endpoints require the original objects echoed back verbatim:
//
//	var exam model.ExamRecord
//	json.Unmarshal(payload, &exam)
//	fmt.Println(exam.AccessionNumber) // decoded field
//	// exam.Raw == payload            // preserved for echo-back
//
// # SearchCriteria
//
// SearchCriteria describes one search and validates that at least one
// search key (accession number or MRN) is present before any network
// call happens:
//
//	criteria := model.SearchCriteria{AccessionNumber: "ACC123"}
//	if err := criteria.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # ArchiveJob
//
// ArchiveJob tracks a server-side packaging job through its states
// (pending, started, completed, failed). ArchiveStatus.Ready reports
// when the archive stream may be opened.
package model
