// Package output computes destination paths for downloaded archives
// and writes the accessions report.
//
// # Resolver
//
// Resolver turns a user-supplied base path plus an exam's position in
// the result set into a unique destination file:
//
//	resolver := output.NewResolver("./out")
//	path, err := resolver.Resolve(exam, 0) // ./out/ACC123.zip
//
// A base path without the .zip extension is treated as a directory and
// filled with accession-named archives; a base path ending in .zip is
// used exactly once and index-suffixed afterwards. One Resolver tracks
// all paths it hands out, so a single run can never write two exams to
// the same file.
//
// # Accessions report
//
// AppendAccessionReport supports the listing-only mode: instead of
// downloading, each matched exam becomes one CSV line in accessions.csv
// (patientId, accession, dateTime, sex, birthdate, description,
// imageCount).
package output
