package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
)

type smsTestConfig struct{ url string }

func (c smsTestConfig) GetSMSGatewayURL() string      { return c.url }
func (c smsTestConfig) GetSMSGatewayKey() string      { return "secret" }
func (c smsTestConfig) GetSMSSenderID() string        { return "OPS" }
func (c smsTestConfig) GetPhoneDefaultRegion() string { return "US" }

func newSMSServer(t *testing.T, status int, body string, got *smsRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSMSClient_SendsE164(t *testing.T) {
	var got smsRequest
	srv := newSMSServer(t, http.StatusAccepted, `{"id":"m1"}`, &got)
	client := NewSMSClient(smsTestConfig{url: srv.URL + "/"}, logger.Nop())

	err := client.Send(context.Background(), Recipient{ID: uuid.New(), Phone: "(201) 555-0123"}, Message{Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.To != "+12015550123" || got.Text != "hello" || got.From != "OPS" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSMSClient_InvalidNumberIsPermanent(t *testing.T) {
	srv := newSMSServer(t, http.StatusAccepted, "", nil)
	client := NewSMSClient(smsTestConfig{url: srv.URL}, logger.Nop())

	err := client.Send(context.Background(), Recipient{ID: uuid.New(), Phone: "12"}, Message{Body: "hello"})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestSMSClient_ClassifiesGatewayErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"invalid destination", http.StatusBadRequest, `{"error":{"code":"invalid_destination"}}`, true},
		{"blocked", http.StatusUnprocessableEntity, `{"error":{"code":"blocked_number"}}`, true},
		{"throttled", http.StatusTooManyRequests, `{"error":{"code":"invalid_destination"}}`, false},
		{"server error", http.StatusBadGateway, `oops`, false},
		{"unauthorised", http.StatusUnauthorized, `{"error":{"code":"bad_key"}}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newSMSServer(t, tc.status, tc.body, nil)
			client := NewSMSClient(smsTestConfig{url: srv.URL}, logger.Nop())

			err := client.Send(context.Background(), Recipient{ID: uuid.New(), Phone: "+12015550123"}, Message{Body: "x"})
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("expected DeliveryError, got %v", err)
			}
			if de.Permanent != tc.permanent {
				t.Fatalf("expected permanent=%v, got %v (%v)", tc.permanent, de.Permanent, err)
			}
		})
	}
}

func TestSMSClient_MissingPhone(t *testing.T) {
	client := NewSMSClient(smsTestConfig{url: "http://unused"}, logger.Nop())
	err := client.Send(context.Background(), Recipient{ID: uuid.New()}, Message{Body: "x"})
	if !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

func TestNewSMSClient_DisabledWithoutURL(t *testing.T) {
	if c := NewSMSClient(smsTestConfig{}, logger.Nop()); c != nil {
		t.Fatalf("expected nil client without gateway url")
	}
}
