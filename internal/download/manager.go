package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rauschecker-sugrue-labs/air-download/internal/air"
	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/filter"
	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
	"github.com/rauschecker-sugrue-labs/air-download/internal/output"
	"golang.org/x/sync/errgroup"
)

// pollInterval is the fixed delay between archive readiness checks.
const pollInterval = 100 * time.Millisecond

// chunkSize is the buffer size for streaming archive bytes to disk.
const chunkSize = 8192

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a run progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// ExamResult is the per-exam outcome of a run.
type ExamResult struct {
	// Exam is the record this result belongs to.
	Exam model.ExamRecord

	// Path is the resolved destination, empty in reporting mode.
	Path string

	// Bytes is the number of archive bytes written.
	Bytes int64

	// Skipped is set when the exam was deliberately not downloaded
	// (series filter left nothing, or reporting mode).
	Skipped bool

	// Err is the failure that aborted this exam, nil on success.
	Err error
}

// Manager coordinates exam downloads: search, filter, archive
// negotiation, and streaming to disk.
//
// Fatal conditions (configuration, authentication) are returned as
// errors; per-exam failures are captured in the ExamResult slice and
// never abort the run.
type Manager struct {
	settings *config.Settings
	client   *air.Client
	session  *air.Session

	onProgress func(ProgressEvent)
	onTransfer func(label string, written, total int64)
}

// NewManager creates a Manager for the configured AIR endpoint.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent)) *Manager {
	return &Manager{
		settings:   settings,
		client:     air.NewClient(settings.BaseURL),
		onProgress: onProgress,
	}
}

// SetTransferFunc installs a callback for byte-level progress during
// archive streaming. label identifies the exam; written is cumulative.
func (m *Manager) SetTransferFunc(fn func(label string, written, total int64)) {
	m.onTransfer = fn
}

// Login resolves credentials (file first, then environment) and opens
// the session used by all subsequent calls.
func (m *Manager) Login(ctx context.Context) error {
	creds, err := config.ResolveCredentials(m.settings.CredPath, func(format string, args ...any) {
		m.progress(ProgressEvent{Message: fmt.Sprintf(format, args...), Level: LevelWarning})
	})
	if err != nil {
		return err
	}

	session, err := m.client.Authenticate(ctx, creds)
	if err != nil {
		return err
	}
	m.session = session
	return nil
}

// Session returns the active session, nil before Login.
func (m *Manager) Session() *air.Session { return m.session }

// Profiles fetches the anonymization profiles visible to the user.
func (m *Manager) Profiles(ctx context.Context) ([]model.Profile, error) {
	return m.client.ListProfiles(ctx, m.session)
}

// Run performs one search-and-download run and returns the per-exam
// outcomes. Login must have been called first.
func (m *Manager) Run(ctx context.Context, criteria model.SearchCriteria) ([]ExamResult, error) {
	if m.session == nil {
		return nil, errors.New("not logged in")
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	exams, err := m.client.Search(ctx, m.session, criteria)
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		m.progress(ProgressEvent{Message: "No exams matched the search.", Level: LevelInfo})
		return nil, nil
	}
	if len(exams) > 1 {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Found %d exams: %s", len(exams), examLabels(exams)),
			Level:   LevelInfo,
		})
	}

	logf := func(format string, args ...any) {
		m.progress(ProgressEvent{Message: fmt.Sprintf(format, args...), Level: LevelInfo})
	}
	exams = filter.ByField(exams, "exam modality",
		func(e model.ExamRecord) string { return e.Modality },
		m.settings.ModalityInclusion, logf)
	exams = filter.ByField(exams, "exam description",
		func(e model.ExamRecord) string { return e.Description },
		m.settings.DescriptionInclusion, logf)
	if len(exams) == 0 {
		m.progress(ProgressEvent{Message: "No exams left after filtering.", Level: LevelInfo})
		return nil, nil
	}

	if m.settings.AccessionsOnly {
		return m.report(exams)
	}

	// Resolve every destination before any file is created, so exams
	// stay independent even when downloaded in parallel.
	resolver := output.NewResolver(m.settings.Output)
	results := make([]ExamResult, len(exams))
	for i, exam := range exams {
		results[i] = ExamResult{Exam: exam}
		results[i].Path, err = resolver.Resolve(exam, i)
		if err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.Parallel)

	for i := range results {
		res := &results[i]
		g.Go(func() error {
			if err := m.downloadExam(gctx, res); err != nil {
				res.Err = err
				m.progress(ProgressEvent{
					Message: fmt.Sprintf("Error downloading %s: %v", res.Exam.Label(), err),
					Level:   LevelError,
				})
				// Continue with the remaining exams unless the whole
				// run was cancelled.
				if gctx.Err() != nil {
					return gctx.Err()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// report implements the accessions-only listing mode: no archive calls,
// one CSV record per matched exam.
func (m *Manager) report(exams []model.ExamRecord) ([]ExamResult, error) {
	dir := m.settings.Output
	if strings.EqualFold(filepath.Ext(dir), output.ArchiveExt) {
		dir = filepath.Dir(dir)
	}

	path, err := output.AppendAccessionReport(dir, exams)
	if err != nil {
		return nil, err
	}
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Appended %d exam(s) to %s", len(exams), path),
		Level:   LevelSuccess,
	})

	results := make([]ExamResult, len(exams))
	for i, exam := range exams {
		results[i] = ExamResult{Exam: exam, Skipped: true}
	}
	return results, nil
}

// downloadExam drives one exam through series listing, filtering, the
// archive state machine, and streaming. It mutates res in place.
func (m *Manager) downloadExam(ctx context.Context, res *ExamResult) error {
	exam := res.Exam

	series, err := m.client.ListSeries(ctx, m.session, exam)
	if err != nil {
		return err
	}

	series = filter.ByField(series, "series description",
		func(s model.SeriesRecord) string { return s.Description },
		m.settings.SeriesInclusion,
		func(format string, args ...any) {
			m.progress(ProgressEvent{Message: fmt.Sprintf(format, args...), Level: LevelInfo})
		})
	if len(series) == 0 {
		res.Skipped = true
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Skipping %s: no series left after filtering.", exam.Label()),
			Level:   LevelWarning,
		})
		return nil
	}

	job, err := m.client.StartArchive(ctx, m.session, exam, series, m.settings.ProjectID, m.settings.ProfileID)
	if err != nil {
		var archiveErr *air.ArchiveError
		if errors.As(err, &archiveErr) {
			m.diagnoseArchiveFailure(ctx, archiveErr)
		}
		return err
	}

	if err := m.waitForArchive(ctx, job); err != nil {
		return err
	}

	written, err := m.streamArchive(ctx, job, exam, res.Path)
	res.Bytes = written
	if err != nil {
		return err
	}

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Downloaded %s (%d bytes) to %s", exam.Label(), written, res.Path),
		Level:   LevelSuccess,
	})
	return nil
}

// diagnoseArchiveFailure prints the valid projects or profiles when the
// server's rejection reason points at one of them. Best effort only; a
// failed listing never masks the original error.
func (m *Manager) diagnoseArchiveFailure(ctx context.Context, archiveErr *air.ArchiveError) {
	switch {
	case archiveErr.MentionsProject():
		m.progress(ProgressEvent{Message: "Project ID is invalid or missing. Available projects:", Level: LevelError})
		for _, p := range m.session.Projects {
			m.progress(ProgressEvent{Message: fmt.Sprintf("  ID: %d, Name: %s", p.ID, p.Name), Level: LevelInfo})
		}
	case archiveErr.MentionsProfile():
		m.progress(ProgressEvent{Message: "Profile ID is invalid or missing. Available profiles:", Level: LevelError})
		profiles, err := m.client.ListProfiles(ctx, m.session)
		if err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Could not list profiles: %v", err), Level: LevelWarning})
			return
		}
		for _, p := range profiles {
			m.progress(ProgressEvent{Message: fmt.Sprintf("  ID: %d, Name: %s, Description: %s", p.ID, p.Name, p.Description), Level: LevelInfo})
		}
	default:
		m.progress(ProgressEvent{Message: "Unknown error occurred during download initiation.", Level: LevelError})
	}
}

// waitForArchive polls the job at a fixed interval until it is ready,
// fails, or the poll deadline passes.
func (m *Manager) waitForArchive(ctx context.Context, job *model.ArchiveJob) error {
	deadline := time.Now().Add(m.settings.PollTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := m.client.CheckArchive(ctx, m.session, job, m.settings.ProjectID)
		if err != nil {
			return err
		}
		if status == model.ArchiveFailed {
			return fmt.Errorf("archive job %s failed: %s", job.ID, job.Reason)
		}
		if status.Ready() {
			return nil
		}
		if time.Now().After(deadline) {
			return &air.PollTimeoutError{Elapsed: m.settings.PollTimeout, LastStatus: status}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// streamArchive copies the archive stream to destPath in fixed-size
// chunks. The destination is created only once the stream is open, and
// a partial file is removed on error so no half-written archive is
// left looking complete.
func (m *Manager) streamArchive(ctx context.Context, job *model.ArchiveJob, exam model.ExamRecord, destPath string) (int64, error) {
	stream, total, err := m.client.OpenArchive(ctx, m.session, job, m.settings.ProjectID)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}

	pw := &ProgressWriter{
		Writer: file,
		Total:  total,
	}
	if m.onTransfer != nil {
		label := exam.Label()
		pw.OnUpdate = func(written, total int64) {
			m.onTransfer(label, written, total)
		}
	}

	_, err = io.CopyBuffer(pw, stream, make([]byte, chunkSize))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return pw.Written, err
	}
	return pw.Written, nil
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

func examLabels(exams []model.ExamRecord) string {
	labels := make([]string, len(exams))
	for i, e := range exams {
		labels[i] = e.Label()
	}
	return strings.Join(labels, ", ")
}
