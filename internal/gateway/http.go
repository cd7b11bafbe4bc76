package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 1 << 20

// HTTPConfig configures the HTTP gateway
type HTTPConfig struct {
	BaseURL string
	Token   string
	Gzip    bool
	Client  *http.Client
}

// HTTP submits migrations to the sync server's REST API
type HTTP struct {
	base   *url.URL
	token  string
	gzip   bool
	client *http.Client
}

var _ Gateway = (*HTTP)(nil)

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote url is not configured")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http or https, got %q", base.Scheme)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("no bearer token; run 'tally auth set-token' first")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{base: base, token: cfg.Token, gzip: cfg.Gzip, client: client}, nil
}

func (h *HTTP) endpoint(path string) string {
	return h.base.String() + path
}

func (h *HTTP) Probe(ctx context.Context) (CloudState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint(constants.MigrationStatusPath), nil)
	if err != nil {
		return CloudState{}, err
	}

	var state CloudState
	if _, err := h.do(req, "probe", &state); err != nil {
		return CloudState{}, err
	}
	if state.ChallengeCount > 0 || state.EntryCount > 0 {
		state.HasData = true
	}
	return state, nil
}

func (h *HTTP) Import(ctx context.Context, sub Submission) (ImportResult, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return ImportResult{}, err
	}

	var reader io.Reader = bytes.NewReader(body)
	if h.gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return ImportResult{}, err
		}
		if err := zw.Close(); err != nil {
			return ImportResult{}, err
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint(constants.MigrationImportPath), reader)
	if err != nil {
		return ImportResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	logger.For("remote-import").Debug("Submitting migration", "url", req.URL.String(), "strategy", sub.Strategy,
		"challenges", len(sub.Challenges), "entries", len(sub.Entries), "gzip", h.gzip)

	var result ImportResult
	status, err := h.do(req, "import", &result)
	if err != nil {
		return ImportResult{}, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "server reported failure without a reason"
		}
		return result, &errors.RemoteRejectedError{Status: status, Message: msg}
	}
	return result, nil
}

// do sends req and decodes a 2xx JSON body into out
func (h *HTTP) do(req *http.Request, op string, out interface{}) (int, error) {
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Accept", "application/json")

	res, err := h.client.Do(req)
	if err != nil {
		return 0, &errors.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, &errors.NetworkError{Op: op, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.StatusCode, &errors.RemoteRejectedError{Status: res.StatusCode, Message: errorMessage(res, data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return res.StatusCode, &errors.RemoteRejectedError{Status: res.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return res.StatusCode, nil
}

// errorMessage prefers the JSON error field of a failure body
func errorMessage(res *http.Response, data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(res.StatusCode)
}
