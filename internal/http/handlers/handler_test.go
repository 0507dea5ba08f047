package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"companion_gateway/internal/repository"
	"companion_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	if w.Code != 200 {
		t.Fatalf("envelope responses must be HTTP 200, got %d", w.Code)
	}
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestRespondErrTransitionCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{&service.TransitionError{Code: service.CodeQueueFull, Msg: "full"}, 100201},
		{&service.TransitionError{Code: service.CodeSeatOccupied, Msg: "taken"}, 100202},
		{&service.TransitionError{Code: service.CodeInBattle, Msg: "in battle"}, 100204},
		{&service.TransitionError{Code: service.CodeNotSeated, Msg: "not seated"}, 100205},
		{&service.RequestError{Code: service.CodeSMSCodeMismatch, Msg: "mismatch"}, 100104},
		{repository.ErrRoomNotFound, CodeBadRequest},
		{service.ErrInvalidToken, CodeUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondErr(c, tc.err)
		resp := decodeEnvelope(t, w)
		if resp.Code != tc.code {
			t.Errorf("%v: code = %d, want %d", tc.err, resp.Code, tc.code)
		}
	}
}

func TestRespondErrFrozenCarriesSecondsLeft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, &service.TransitionError{Code: service.CodeFrozen, Msg: "frozen", SecondsLeft: 42})
	resp := decodeEnvelope(t, w)
	if resp.Code != 100203 {
		t.Fatalf("code = %d", resp.Code)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data missing: %+v", resp)
	}
	if data["seconds_left"] != float64(42) {
		t.Fatalf("seconds_left = %v", data["seconds_left"])
	}
}

func TestRespondErrUnknownBecomesInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, errTest{})
	resp := decodeEnvelope(t, w)
	if resp.Code != CodeInternal {
		t.Fatalf("code = %d, want %d", resp.Code, CodeInternal)
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

func TestRespondOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondOK(c, gin.H{"x": 1})
	resp := decodeEnvelope(t, w)
	if resp.Code != CodeOK || resp.Msg != "ok" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
}
