package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// ReportFileName is the accessions report written in listing-only mode.
const ReportFileName = "accessions.csv"

// AppendAccessionReport appends one CSV record per exam to
// accessions.csv under dir, creating the directory and file as needed.
//
// Columns: patientId, accession, dateTime, sex, birthdate, description
// (quoted), imageCount. The file is append-only so repeated runs
// accumulate into a single report.
func AppendAccessionReport(dir string, exams []model.ExamRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ReportFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	for _, exam := range exams {
		line := fmt.Sprintf("%s,%s,%s,%s,%s,%q,%d\n",
			exam.PatientID,
			exam.AccessionNumber,
			exam.DateTime,
			exam.PatientSex,
			exam.Birthdate,
			sanitizeCSVField(exam.Description),
			exam.ImageCount,
		)
		if _, err := f.WriteString(line); err != nil {
			return "", fmt.Errorf("append to %s: %w", path, err)
		}
	}

	return path, nil
}

// sanitizeCSVField keeps a free-text field on one line. Quoting is
// handled by the %q verb; embedded newlines would still break the
// one-record-per-line shape, so they become spaces.
func sanitizeCSVField(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
