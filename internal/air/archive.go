package air

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// archiveName is the packaging job name sent to the server. The server
// uses it only to label the job; the local destination path is chosen
// by the output resolver.
const archiveName = "Download.zip"

type startRequest struct {
	Decompress bool              `json:"decompress"`
	Name       string            `json:"name"`
	Profile    int               `json:"profile"`
	ProjectID  int               `json:"projectId"`
	Series     []json.RawMessage `json:"series"`
	Study      json.RawMessage   `json:"study"`
}

type startResponse struct {
	DownloadID string `json:"downloadId"`
	Reason     string `json:"reason"`
}

// StartArchive asks the server to package the given series of one exam
// into a zip archive. Server-side decompression is always disabled; the
// archive bytes are treated as opaque.
//
// A response without a download identifier means the server rejected
// the job; this is returned as an *ArchiveError carrying the server's
// reason so callers can surface project/profile diagnostics.
func (c *Client) StartArchive(ctx context.Context, s *Session, exam model.ExamRecord, series []model.SeriesRecord, project, profile int) (*model.ArchiveJob, error) {
	rawSeries := make([]json.RawMessage, len(series))
	for i, sr := range series {
		rawSeries[i] = sr.Raw
	}

	var resp startResponse
	err := c.postJSON(ctx, "secure/search/download/start", s.Token, startRequest{
		Name:      archiveName,
		Profile:   profile,
		ProjectID: project,
		Series:    rawSeries,
		Study:     exam.Raw,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("start archive for %s: %w", exam.Label(), err)
	}

	if resp.DownloadID == "" {
		return nil, &ArchiveError{Reason: resp.Reason}
	}

	return &model.ArchiveJob{ID: resp.DownloadID, Status: model.ArchivePending}, nil
}

type checkRequest struct {
	DownloadID string `json:"downloadId"`
	ProjectID  int    `json:"projectId"`
}

type checkResponse struct {
	Status model.ArchiveStatus `json:"status"`
	Reason string              `json:"reason"`
}

// CheckArchive polls the status of a packaging job once. Callers loop
// on this until the status is ready (started or completed) or failed.
func (c *Client) CheckArchive(ctx context.Context, s *Session, job *model.ArchiveJob, project int) (model.ArchiveStatus, error) {
	var resp checkResponse
	err := c.postJSON(ctx, "secure/search/download/check", s.Token, checkRequest{
		DownloadID: job.ID,
		ProjectID:  project,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("check archive %s: %w", job.ID, err)
	}

	job.Status = resp.Status
	job.Reason = resp.Reason
	return resp.Status, nil
}

// OpenArchive opens the archive byte stream for a ready job.
//
// Unlike every other endpoint this one is a form-encoded POST, with the
// request parameters JSON-encoded inside a "params" field and the JWT
// in the body rather than a bearer header. That is how the server's
// browser download works, and the API accepts nothing else here.
//
// Returns the stream, which the caller must close, and the declared
// total length (0 when the server omits Content-Length).
func (c *Client) OpenArchive(ctx context.Context, s *Session, job *model.ArchiveJob, project int) (io.ReadCloser, int64, error) {
	params, err := json.Marshal(map[string]any{
		"downloadId": job.ID,
		"projectId":  project,
		"name":       archiveName,
	})
	if err != nil {
		return nil, 0, err
	}

	form := url.Values{
		"params": {string(params)},
		"jwt":    {s.Token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpointURL("secure/search/download/zip"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("open archive %s: HTTP %d: %s", job.ID, resp.StatusCode, resp.Status)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return resp.Body, total, nil
}
