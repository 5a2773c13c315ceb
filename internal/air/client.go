package air

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

const userAgent = "air-download"

// Client talks JSON-over-HTTPS to one AIR API base URL.
//
// All control calls (login, search, series, download negotiation) go
// through a client with a request timeout. The archive stream uses a
// separate client with no global timeout, since packaging large exams
// can legitimately take longer than any fixed request budget; callers
// bound it with the context instead.
//
// Example usage:
//
//	client := air.NewClient("https://air.example.edu/api/")
//	session, err := client.Authenticate(ctx, creds)
//	exams, err := client.Search(ctx, session, criteria)
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{},
	}
}

// Session holds the bearer credential obtained from a login call plus
// the project memberships the server reported for the user.
//
// A Session is immutable after creation and safe to share read-only
// across all subsequent calls for the life of the process.
type Session struct {
	// Token is the opaque JWT attached as a bearer header to all
	// secure endpoints.
	Token string

	// Projects are the projects the authenticated user belongs to.
	Projects []model.Project
}

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token struct {
		JWT string `json:"jwt"`
	} `json:"token"`
	User struct {
		Projects []model.Project `json:"projects"`
	} `json:"user"`
}

// Authenticate posts credentials to the login endpoint and returns a
// Session. A response without a JWT is an *AuthError.
func (c *Client) Authenticate(ctx context.Context, creds config.Credentials) (*Session, error) {
	var resp loginResponse
	err := c.postJSON(ctx, "login", "", loginRequest{
		UserID:   creds.Username,
		Password: creds.Password,
	}, &resp)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	if resp.Token.JWT == "" {
		return nil, &AuthError{Err: fmt.Errorf("login response contained no token")}
	}

	return &Session{
		Token:    resp.Token.JWT,
		Projects: resp.User.Projects,
	}, nil
}

type searchRequest struct {
	Name      string          `json:"name"`
	MRN       string          `json:"mrn"`
	AccNum    string          `json:"accNum"`
	DateRange model.DateRange `json:"dateRange"`
	Modality  string          `json:"modality"`
	SourceID  int             `json:"sourceId"`
}

type searchResponse struct {
	Exams []model.ExamRecord `json:"exams"`
}

// Search runs one exam search. An empty result is not an error; the
// caller decides whether it is terminal.
func (c *Client) Search(ctx context.Context, s *Session, criteria model.SearchCriteria) ([]model.ExamRecord, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	var resp searchResponse
	err := c.postJSON(ctx, "secure/search/query-data-source", s.Token, searchRequest{
		MRN:       criteria.PatientID,
		AccNum:    criteria.AccessionNumber,
		DateRange: criteria.DateRange,
		Modality:  criteria.Modality,
		SourceID:  1,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("exam search: %w", err)
	}

	return resp.Exams, nil
}

// ListSeries fetches the series of one exam. The exam's raw search
// payload is echoed back to the server unchanged, as the endpoint
// expects the full object it originally returned.
func (c *Client) ListSeries(ctx context.Context, s *Session, exam model.ExamRecord) ([]model.SeriesRecord, error) {
	var series []model.SeriesRecord
	if err := c.postRaw(ctx, "secure/search/series", s.Token, exam.Raw, &series); err != nil {
		return nil, fmt.Errorf("list series for %s: %w", exam.Label(), err)
	}
	return series, nil
}

type listProfilesRequest struct {
	IncludeGlobal         bool `json:"includeGlobal"`
	IncludeCustom         bool `json:"includeCustom"`
	IncludeDefault        bool `json:"includeDefault"`
	IncludeInactiveCustom bool `json:"includeInactiveCustom"`
	IncludeInactiveGlobal bool `json:"includeInactiveGlobal"`
	IncludeInactiveShared bool `json:"includeInactiveShared"`
	IncludeShared         bool `json:"includeShared"`
}

// ListProfiles fetches the anonymization profiles visible to the user:
// active global, custom, and shared profiles.
func (c *Client) ListProfiles(ctx context.Context, s *Session) ([]model.Profile, error) {
	var profiles []model.Profile
	err := c.postJSON(ctx, "secure/anonymization/list-profiles", s.Token, listProfilesRequest{
		IncludeGlobal: true,
		IncludeCustom: true,
		IncludeShared: true,
	}, &profiles)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// postJSON marshals body, POSTs it, and decodes the JSON response into
// out. token, when non-empty, is sent as a bearer header.
func (c *Client) postJSON(ctx context.Context, endpoint, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.postRaw(ctx, endpoint, token, payload, out)
}

func (c *Client) postRaw(ctx context.Context, endpoint, token string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d: %s", endpoint, resp.StatusCode, resp.Status)
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL + "/" + endpoint
}
