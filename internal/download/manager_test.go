package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rauschecker-sugrue-labs/air-download/internal/air"
	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// fakeAIR is a scriptable in-process AIR server.
type fakeAIR struct {
	mu sync.Mutex

	exams         []string // raw exam JSON payloads returned by search
	series        string   // raw series JSON array returned per exam
	startResponse string   // response to download/start
	checkStatuses []string // successive statuses returned by download/check
	archiveBytes  []byte   // body of the zip stream

	checkCalls   int
	startCalls   int
	profileCalls int
	seriesCalls  int
}

func (f *fakeAIR) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"token":{"jwt":"tok"},"user":{"projects":[{"id":7,"name":"Neuro"}]}}`)
	})
	mux.HandleFunc("/secure/search/query-data-source", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"exams":[%s]}`, strings.Join(f.exams, ","))
	})
	mux.HandleFunc("/secure/search/series", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.seriesCalls++
		f.mu.Unlock()
		io.WriteString(w, f.series)
	})
	mux.HandleFunc("/secure/anonymization/list-profiles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.profileCalls++
		f.mu.Unlock()
		io.WriteString(w, `[{"id":3,"name":"Research","description":"strip PHI"}]`)
	})
	mux.HandleFunc("/secure/search/download/start", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.startCalls++
		f.mu.Unlock()
		io.WriteString(w, f.startResponse)
	})
	mux.HandleFunc("/secure/search/download/check", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		idx := f.checkCalls
		f.checkCalls++
		f.mu.Unlock()
		if idx >= len(f.checkStatuses) {
			idx = len(f.checkStatuses) - 1
		}
		fmt.Fprintf(w, `{"status":%q}`, f.checkStatuses[idx])
	})
	mux.HandleFunc("/secure/search/download/zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.archiveBytes)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T, f *fakeAIR, outDir string) (*Manager, *[]ProgressEvent) {
	t.Helper()
	t.Setenv(config.EnvUsername, "researcher")
	t.Setenv(config.EnvPassword, "hunter2")

	server := f.server(t)

	settings := config.DefaultSettings()
	settings.BaseURL = server.URL
	settings.Output = outDir
	settings.ProjectID = 7
	settings.ProfileID = 3

	var events []ProgressEvent
	manager := NewManager(settings, func(event ProgressEvent) {
		events = append(events, event)
	})

	if err := manager.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return manager, &events
}

func messages(events []ProgressEvent) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString(e.Message)
		b.WriteString("\n")
	}
	return b.String()
}

func TestRun_PollsUntilStartedThenStreams(t *testing.T) {
	payload := []byte("PK\x03\x04 archive bytes")
	f := &fakeAIR{
		exams:         []string{`{"accessionNumber":"ACC123","modality":"MR"}`},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"downloadId":"dl-1"}`,
		checkStatuses: []string{"pending", "pending", "started"},
		archiveBytes:  payload,
	}

	outDir := filepath.Join(t.TempDir(), "out")
	manager, _ := newTestManager(t, f, outDir)

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC123"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("exam failed: %v", results[0].Err)
	}

	// The poll loop must call check exactly once per scripted status
	// and proceed to streaming only after the third.
	if f.checkCalls != 3 {
		t.Errorf("check calls = %d, want 3", f.checkCalls)
	}

	wantPath := filepath.Join(outDir, "ACC123.zip")
	if results[0].Path != wantPath {
		t.Errorf("Path = %q, want %q", results[0].Path, wantPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("archive bytes = %q, want %q", data, payload)
	}
	if results[0].Bytes != int64(len(payload)) {
		t.Errorf("Bytes = %d, want %d", results[0].Bytes, len(payload))
	}
}

func TestRun_ProfileRejectionListsProfilesAndContinues(t *testing.T) {
	f := &fakeAIR{
		exams: []string{
			`{"accessionNumber":"ACC1"}`,
			`{"accessionNumber":"ACC2"}`,
		},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"reason":"invalid profile id"}`,
		checkStatuses: []string{"completed"},
	}

	outDir := filepath.Join(t.TempDir(), "out")
	manager, events := newTestManager(t, f, outDir)

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// The profile listing diagnostic must run before the exam is
	// abandoned, and both exams must be attempted.
	if f.profileCalls != 2 {
		t.Errorf("profile listing calls = %d, want 2 (one per failed exam)", f.profileCalls)
	}
	if f.startCalls != 2 {
		t.Errorf("start calls = %d, want 2", f.startCalls)
	}

	for i, res := range results {
		var archiveErr *air.ArchiveError
		if !errors.As(res.Err, &archiveErr) {
			t.Errorf("result %d error = %v, want *air.ArchiveError", i, res.Err)
		}
	}

	log := messages(*events)
	if !strings.Contains(log, "Available profiles:") {
		t.Errorf("diagnostics missing from log:\n%s", log)
	}
	if !strings.Contains(log, "Research") {
		t.Errorf("profile names missing from log:\n%s", log)
	}
}

func TestRun_ProjectRejectionListsSessionProjects(t *testing.T) {
	f := &fakeAIR{
		exams:         []string{`{"accessionNumber":"ACC1"}`},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"reason":"project not found"}`,
	}

	manager, events := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("expected the exam to fail")
	}

	// Project diagnostics come from the session, not a network call.
	if f.profileCalls != 0 {
		t.Errorf("profile listing calls = %d, want 0", f.profileCalls)
	}
	log := messages(*events)
	if !strings.Contains(log, "Available projects:") || !strings.Contains(log, "Neuro") {
		t.Errorf("project diagnostics missing from log:\n%s", log)
	}
}

func TestRun_SkipsExamWhenSeriesFilterLeavesNothing(t *testing.T) {
	f := &fakeAIR{
		exams:  []string{`{"accessionNumber":"ACC1"}`},
		series: `[{"description":"SAG T2 FLAIR"}]`,
	}

	outDir := filepath.Join(t.TempDir(), "out")
	manager, events := newTestManager(t, f, outDir)
	manager.settings.SeriesInclusion = "t1,spgr"

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !results[0].Skipped || results[0].Err != nil {
		t.Errorf("result = %+v, want skipped without error", results[0])
	}
	if f.startCalls != 0 {
		t.Errorf("start calls = %d, want 0 for a skipped exam", f.startCalls)
	}
	log := messages(*events)
	if !strings.Contains(log, "Skipping") {
		t.Errorf("skip message missing from log:\n%s", log)
	}
	// Filter diagnostics name the values seen before filtering.
	if !strings.Contains(log, "SAG T2 FLAIR") {
		t.Errorf("filter diagnostics missing from log:\n%s", log)
	}
}

func TestRun_SeriesFetchedLazilyOnlyForProcessedExams(t *testing.T) {
	f := &fakeAIR{
		exams: []string{`{"accessionNumber":"ACC1","modality":"CT"}`},
	}

	manager, _ := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))
	manager.settings.ModalityInclusion = "mr"

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results != nil {
		t.Errorf("results = %+v, want nil after exam filter removed everything", results)
	}
	if f.seriesCalls != 0 {
		t.Errorf("series calls = %d, want 0 for filtered-out exams", f.seriesCalls)
	}
}

func TestRun_AccessionsOnlyWritesReportWithoutDownloading(t *testing.T) {
	f := &fakeAIR{
		exams: []string{
			`{"patientId":"111","accessionNumber":"ACC1","dateTime":"2024-01-01 10:00","patientSex":"F","birthdate":"1980-01-01","description":"MRI BRAIN","imageCount":100}`,
			`{"patientId":"222","accessionNumber":"ACC2","dateTime":"2024-01-02 11:00","patientSex":"M","birthdate":"1990-02-02","description":"CT CHEST","imageCount":50}`,
		},
	}

	outDir := filepath.Join(t.TempDir(), "out")
	manager, _ := newTestManager(t, f, outDir)
	manager.settings.AccessionsOnly = true

	results, err := manager.Run(context.Background(), model.SearchCriteria{PatientID: "111"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 || !results[0].Skipped {
		t.Errorf("results = %+v", results)
	}
	if f.seriesCalls != 0 || f.startCalls != 0 {
		t.Errorf("archive endpoints hit in reporting mode: series=%d start=%d", f.seriesCalls, f.startCalls)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "accessions.csv"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("report has %d lines, want 2:\n%s", len(lines), data)
	}
	if lines[0] != `111,ACC1,2024-01-01 10:00,F,1980-01-01,"MRI BRAIN",100` {
		t.Errorf("report line = %s", lines[0])
	}
}

func TestRun_NoExamsIsNotAnError(t *testing.T) {
	f := &fakeAIR{}
	manager, events := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "NOPE"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results != nil {
		t.Errorf("results = %+v, want nil", results)
	}
	if !strings.Contains(messages(*events), "No exams matched") {
		t.Error("missing informational message for empty search")
	}
}

func TestRun_PollTimeout(t *testing.T) {
	f := &fakeAIR{
		exams:         []string{`{"accessionNumber":"ACC1"}`},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"downloadId":"dl-1"}`,
		checkStatuses: []string{"pending"},
	}

	manager, _ := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))
	manager.settings.PollTimeout = 250 * time.Millisecond

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var timeoutErr *air.PollTimeoutError
	if !errors.As(results[0].Err, &timeoutErr) {
		t.Fatalf("error = %v, want *air.PollTimeoutError", results[0].Err)
	}
	if timeoutErr.LastStatus != model.ArchivePending {
		t.Errorf("LastStatus = %q, want pending", timeoutErr.LastStatus)
	}
	// No partial file may be left behind.
	if _, err := os.Stat(results[0].Path); !os.IsNotExist(err) {
		t.Errorf("unexpected file at %s", results[0].Path)
	}
}

func TestRun_FailedJobAbortsExamOnly(t *testing.T) {
	f := &fakeAIR{
		exams:         []string{`{"accessionNumber":"ACC1"}`},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"downloadId":"dl-1"}`,
		checkStatuses: []string{"pending", "failed"},
	}

	manager, _ := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected the exam to fail when the job status is failed")
	}
}

func TestRun_TransferCallbackReportsCumulativeBytes(t *testing.T) {
	payload := make([]byte, 3*chunkSize)
	f := &fakeAIR{
		exams:         []string{`{"accessionNumber":"ACC1"}`},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"downloadId":"dl-1"}`,
		checkStatuses: []string{"completed"},
		archiveBytes:  payload,
	}

	manager, _ := newTestManager(t, f, filepath.Join(t.TempDir(), "out"))

	var mu sync.Mutex
	var updates []int64
	manager.SetTransferFunc(func(label string, written, total int64) {
		mu.Lock()
		updates = append(updates, written)
		mu.Unlock()
	})

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}

	if len(updates) == 0 {
		t.Fatal("no transfer updates reported")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Errorf("updates not cumulative: %v", updates)
		}
	}
	if updates[len(updates)-1] != int64(len(payload)) {
		t.Errorf("final update = %d, want %d", updates[len(updates)-1], len(payload))
	}
}

func TestRun_MultiExamOutcomeAggregation(t *testing.T) {
	// Search returns two exams; both succeed and must land in
	// distinct files, the second under an index-based name because
	// its accession number is empty.
	f := &fakeAIR{
		exams: []string{
			`{"accessionNumber":"ACC123"}`,
			`{"accessionNumber":""}`,
		},
		series:        `[{"description":"AX T1"}]`,
		startResponse: `{"downloadId":"dl-1"}`,
		checkStatuses: []string{"completed"},
		archiveBytes:  []byte("zip"),
	}

	outDir := filepath.Join(t.TempDir(), "out")
	manager, events := newTestManager(t, f, outDir)

	results, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "ACC123"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}

	if results[0].Path != filepath.Join(outDir, "ACC123.zip") {
		t.Errorf("first path = %q", results[0].Path)
	}
	if results[1].Path != filepath.Join(outDir, "exam_2.zip") {
		t.Errorf("second path = %q", results[1].Path)
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("exam %d failed: %v", i, res.Err)
		}
		if _, err := os.Stat(res.Path); err != nil {
			t.Errorf("archive %d not written: %v", i, err)
		}
	}

	if !strings.Contains(messages(*events), "Found 2 exams") {
		t.Error("multi-exam count not logged")
	}
}

func TestManagerRunRequiresLogin(t *testing.T) {
	settings := config.DefaultSettings()
	settings.BaseURL = "http://127.0.0.1:0"
	manager := NewManager(settings, nil)

	if _, err := manager.Run(context.Background(), model.SearchCriteria{AccessionNumber: "A"}); err == nil {
		t.Error("Run() without Login should fail")
	}
}

func TestManagerRunValidatesCriteria(t *testing.T) {
	f := &fakeAIR{}
	manager, _ := newTestManager(t, f, t.TempDir())

	_, err := manager.Run(context.Background(), model.SearchCriteria{})
	if !errors.Is(err, model.ErrMissingIdentifier) {
		t.Errorf("error = %v, want ErrMissingIdentifier", err)
	}
}
