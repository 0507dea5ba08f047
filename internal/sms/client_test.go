package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/codes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "app-key" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		var req sendCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Mobile != "13800138000" || req.SignID != 7 || req.TempID != 42 {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"msg_id": "msg-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "app-key", "secret", 7, 42)
	msgID, err := c.SendCode(context.Background(), "13800138000")
	if err != nil {
		t.Fatal(err)
	}
	if msgID != "msg-123" {
		t.Fatalf("msg_id = %q, want msg-123", msgID)
	}
}

func TestSendCodeVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":50012,"message":"invalid mobile"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", 1, 1)
	_, err := c.SendCode(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error from vendor rejection")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatal("business rejection must not read as unavailable")
	}
}

func TestSendCodeErrorClasses(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		unavailable bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			unavailable: true,
		},
		{
			name: "gateway timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusGatewayTimeout)
			},
			unavailable: true,
		},
		{
			name: "missing msg_id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
			unavailable: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, "k", "s", 1, 1)
			_, err := c.SendCode(context.Background(), "13800138000")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrUnavailable) != tt.unavailable {
				t.Fatalf("ErrUnavailable = %v, want %v (err: %v)", !tt.unavailable, tt.unavailable, err)
			}
		})
	}
}

func TestSendCodeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "k", "s", 1, 1)
	_, err := c.SendCode(context.Background(), "13800138000")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("connection failure must read as unavailable, got %v", err)
	}
}

func TestVerifyCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/codes/msg-123/valid" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req validRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]bool{"is_valid": req.Code == "123456"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", 1, 1)
	ok, err := c.VerifyCode(context.Background(), "msg-123", "123456")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("matching code reported invalid")
	}
	ok, err = c.VerifyCode(context.Background(), "msg-123", "000000")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("mismatched code reported valid")
	}
}

func TestVerifyCodeAlreadyUsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":50010,"message":"verification expired"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", 1, 1)
	ok, err := c.VerifyCode(context.Background(), "msg-123", "123456")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("vendor error object must read as invalid, not valid")
	}
}
