package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable marks transport-level vendor failures (connection errors,
// timeouts, 5xx). Business rejections like an invalid template or a blocked
// number never carry it.
var ErrUnavailable = errors.New("sms vendor unavailable")

// Client talks to the SMS vendor's verification-code API. The vendor holds
// the generated code; we only ever see the msg_id and, later, the validity
// verdict.
type Client struct {
	baseURL      string
	appKey       string
	masterSecret string
	signID       int
	tempID       int
	httpClient   *http.Client
}

func NewClient(baseURL, appKey, masterSecret string, signID, tempID int) *Client {
	return &Client{
		baseURL:      baseURL,
		appKey:       appKey,
		masterSecret: masterSecret,
		signID:       signID,
		tempID:       tempID,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendCodeRequest struct {
	Mobile string `json:"mobile"`
	SignID int    `json:"sign_id"`
	TempID int    `json:"temp_id"`
}

type sendCodeResponse struct {
	MsgID string `json:"msg_id"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendCode asks the vendor to generate and deliver a code to mobile,
// returning the vendor's msg_id for the later validity check.
func (c *Client) SendCode(ctx context.Context, mobile string) (string, error) {
	body, err := c.post(ctx, c.baseURL+"/codes", sendCodeRequest{
		Mobile: mobile,
		SignID: c.signID,
		TempID: c.tempID,
	})
	if err != nil {
		return "", err
	}
	var resp sendCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("vendor rejected send (%d): %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.MsgID == "" {
		return "", fmt.Errorf("vendor returned no msg_id")
	}
	return resp.MsgID, nil
}

type validRequest struct {
	Code string `json:"code"`
}

type validResponse struct {
	IsValid bool `json:"is_valid"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// VerifyCode asks the vendor whether code matches the one sent under msgID.
// A mismatch is (false, nil); only transport or vendor failures error.
func (c *Client) VerifyCode(ctx context.Context, msgID, code string) (bool, error) {
	body, err := c.post(ctx, fmt.Sprintf("%s/codes/%s/valid", c.baseURL, msgID), validRequest{Code: code})
	if err != nil {
		return false, err
	}
	var resp validResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}
	if resp.Error != nil {
		// The vendor reports an already-used or mismatched code as an
		// error object rather than is_valid=false.
		return false, nil
	}
	return resp.IsValid, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.appKey, c.masterSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}
	return body, nil
}
