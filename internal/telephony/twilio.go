package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TwilioProvider places calls through the Twilio REST API.
//
// It deliberately uses plain HTTP against the documented API instead of a
// provider SDK; the request surface we need is two endpoints.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string

	baseURL string
	client  *http.Client
}

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

func NewTwilioProvider(accountSID, authToken, fromNumber string) (*TwilioProvider, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("telephony: twilio credentials are required")
	}
	if fromNumber == "" {
		return nil, errors.New("telephony: twilio from number is required")
	}
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" {
		return PlaceCallResult{}, errors.New("telephony: destination number is required")
	}
	if req.WebhookBaseURL == "" {
		return PlaceCallResult{}, errors.New("telephony: webhook base url is required")
	}

	scriptURL := req.WebhookBaseURL + "/script?" + url.Values{
		"medication_name": {req.Script.MedicationName},
		"dosage":          {req.Script.Dosage},
		"quantity":        {req.Script.Quantity},
	}.Encode()

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.fromNumber)
	form.Set("Url", scriptURL)
	form.Set("StatusCallback", req.WebhookBaseURL+"/status")
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}
	form.Set("Record", "true")
	form.Set("RecordingStatusCallback", req.WebhookBaseURL+"/recording")

	var out struct {
		Sid string `json:"sid"`
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", p.baseURL, p.accountSID)
	if err := p.do(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), &out); err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: place call: %w", err)
	}
	if out.Sid == "" {
		return PlaceCallResult{}, errors.New("telephony: twilio returned no call sid")
	}
	return PlaceCallResult{ProviderCallID: out.Sid}, nil
}

func (p *TwilioProvider) FetchCallDetails(ctx context.Context, providerCallID string) (CallDetails, error) {
	if providerCallID == "" {
		return CallDetails{}, errors.New("telephony: provider call id is required")
	}

	var call struct {
		Sid      string `json:"sid"`
		Status   string `json:"status"`
		Duration string `json:"duration"`
	}
	callURL := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", p.baseURL, p.accountSID, providerCallID)
	if err := p.do(ctx, http.MethodGet, callURL, nil, &call); err != nil {
		return CallDetails{}, fmt.Errorf("telephony: fetch call: %w", err)
	}

	var recs struct {
		Recordings []struct {
			Sid      string `json:"sid"`
			URI      string `json:"uri"`
			Duration string `json:"duration"`
		} `json:"recordings"`
	}
	recURL := fmt.Sprintf("%s/Accounts/%s/Recordings.json?CallSid=%s", p.baseURL, p.accountSID, url.QueryEscape(providerCallID))
	if err := p.do(ctx, http.MethodGet, recURL, nil, &recs); err != nil {
		return CallDetails{}, fmt.Errorf("telephony: fetch recordings: %w", err)
	}

	details := CallDetails{
		ProviderCallID:  call.Sid,
		Status:          call.Status,
		DurationSeconds: atoiOrZero(call.Duration),
	}
	for _, r := range recs.Recordings {
		details.Recordings = append(details.Recordings, RecordingDetail{
			ID:              r.Sid,
			URL:             r.URI,
			DurationSeconds: atoiOrZero(r.Duration),
		})
	}
	return details, nil
}

func (p *TwilioProvider) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio api %s: %s", resp.Status, truncate(string(raw), 256))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode twilio response: %w", err)
		}
	}
	return nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
