package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/phone"
)

// Gateway error codes that mean the number will never accept messages.
var permanentSMSCodes = map[string]bool{
	"invalid_destination": true,
	"unreachable_number":  true,
	"blocked_number":      true,
	"landline":            true,
}

// SMSClient sends alerts through an HTTP SMS gateway.
type SMSClient struct {
	baseURL string
	apiKey  string
	sender  string
	region  string
	http    *http.Client
	log     *logger.Logger
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Text string `json:"text"`
}

type smsErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewSMSClient returns nil when no gateway is configured.
func NewSMSClient(cfg config.SMSConfig, log *logger.Logger) *SMSClient {
	if cfg.GetSMSGatewayURL() == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}

	return &SMSClient{
		baseURL: strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:  cfg.GetSMSGatewayKey(),
		sender:  cfg.GetSMSSenderID(),
		region:  cfg.GetPhoneDefaultRegion(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *SMSClient) Channel() Channel { return ChannelSMS }

func (c *SMSClient) Send(ctx context.Context, to Recipient, msg Message) error {
	if strings.TrimSpace(to.Phone) == "" {
		return ErrNoDestination
	}

	number, err := phone.ParseE164(to.Phone, c.region)
	if err != nil {
		return permanent(ChannelSMS, "invalid_number", err)
	}

	body, err := json.Marshal(smsRequest{
		To:   number,
		From: c.sender,
		Text: smsText(msg),
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transient(ChannelSMS, "request_failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifySMSFailure(resp.StatusCode, data)
	}

	c.log.Info("sms alert sent", "recipient_id", to.ID.String())
	return nil
}

func classifySMSFailure(status int, data []byte) error {
	var parsed smsErrorResponse
	_ = json.Unmarshal(data, &parsed)
	code := parsed.Error.Code
	if code == "" {
		code = http.StatusText(status)
	}
	cause := fmt.Errorf("sms gateway returned %d: %s", status, strings.TrimSpace(string(data)))

	if status < http.StatusInternalServerError && status != http.StatusTooManyRequests && permanentSMSCodes[code] {
		return permanent(ChannelSMS, code, cause)
	}
	return transient(ChannelSMS, code, cause)
}

// smsText falls back to the subject when the body is empty.
func smsText(msg Message) string {
	text := strings.TrimSpace(msg.Body)
	if text == "" {
		text = msg.Subject
	}
	return text
}

var _ Transport = (*SMSClient)(nil)
