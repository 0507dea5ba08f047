package service

import (
	"errors"
	"fmt"
	"testing"

	"companion_gateway/internal/sms"
)

func TestSendRetryGate(t *testing.T) {
	if !smsSendRetryable(fmt.Errorf("%w: status 503", sms.ErrUnavailable)) {
		t.Fatal("transport failure must be retried")
	}
	if smsSendRetryable(errors.New("vendor rejected send (50012): invalid mobile")) {
		t.Fatal("business rejection must not be retried")
	}
}

func TestMobilePattern(t *testing.T) {
	valid := []string{"13800138000", "15912345678", "19900000000"}
	invalid := []string{"", "12345678901", "1380013800", "138001380000", "23800138000", "1380013800a"}

	for _, m := range valid {
		if !mobilePattern.MatchString(m) {
			t.Errorf("%q should be accepted", m)
		}
	}
	for _, m := range invalid {
		if mobilePattern.MatchString(m) {
			t.Errorf("%q should be rejected", m)
		}
	}
}
