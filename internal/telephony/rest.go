package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RESTClient is the call-control REST client, adapted from the teacher
// module's internal/client.Client: basic-auth form-encoded requests
// against the telephony provider's Calls resource, extended here with
// Redirect (auto-press/DTMF handoff) and Hangup helpers the bridge
// needs that the teacher client only exposed as a generic UpdateCall.
type RESTClient struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient builds a call-control client.
func NewRESTClient(accountSID, authToken string) *RESTClient {
	return &RESTClient{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    "https://api.twilio.com/2010-04-01",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Call mirrors the subset of the provider's Call resource this module
// consumes.
type Call struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// PlaceCallParams configures an outbound call placement.
type PlaceCallParams struct {
	To                  string
	From                string
	URL                 string
	StatusCallback      string
	StatusCallbackEvent string
	CustomParameters    map[string]string
}

// defaultStatusCallbackEvents is the fixed set of call-status
// transitions the provider posts to StatusCallback for every outbound
// call this module places, matching the status-callback handler's own
// lifecycle logging.
const defaultStatusCallbackEvents = "initiated ringing answered completed"

// PlaceCall initiates an outbound call, the REST counterpart to the
// outbound command FSM's accepted confirmation.
func (c *RESTClient) PlaceCall(ctx context.Context, p PlaceCallParams) (*Call, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", p.To)
	data.Set("From", p.From)
	data.Set("Url", p.URL)
	if p.StatusCallback != "" {
		data.Set("StatusCallback", p.StatusCallback)
	}
	event := p.StatusCallbackEvent
	if event == "" {
		event = defaultStatusCallbackEvents
	}
	data.Set("StatusCallbackEvent", event)
	for k, v := range p.CustomParameters {
		data.Set(k, v)
	}

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// Redirect points an in-progress call at a new TwiML URL, used by the
// auto-press engine to hand the call off to a DTMF-redirect document.
func (c *RESTClient) Redirect(ctx context.Context, callSID, twimlURL string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)
	data := url.Values{}
	data.Set("Url", cacheBust(twimlURL))
	data.Set("Method", "POST")
	return c.post(ctx, endpoint, data, nil)
}

// Hangup ends an in-progress call, used by the idle watchdog. (The
// auto-press path hangs up through its redirect TwiML instead.)
func (c *RESTClient) Hangup(ctx context.Context, callSID string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)
	data := url.Values{}
	data.Set("Status", "completed")
	return c.post(ctx, endpoint, data, nil)
}

// RecordingInfo is the subset of a recording resource the download
// retry loop needs.
type RecordingInfo struct {
	SID       string `json:"sid"`
	URI       string `json:"uri"`
	MediaURL  string `json:"-"`
	Duration  string `json:"duration"`
}

// DownloadRecording fetches recording bytes from an absolute media URL,
// trying the given format first (".mp3") with a ".wav" fallback on the
// caller's side — this method itself just performs one GET and leaves
// fallback sequencing to internal/recording.
func (c *RESTClient) DownloadRecording(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("telephony: recording download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *RESTClient) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *RESTClient) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telephony: call-control request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("telephony: decode response: %w", err)
		}
	}
	return nil
}

// cacheBust appends a volatile query parameter, matching the pattern
// the config provider uses, so a redirect URL is never served from an
// intermediate cache.
func cacheBust(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("_t", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
