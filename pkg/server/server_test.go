package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/server"
	"github.com/m-mizutani/gt"
)

type stubAnswerer struct {
	result *model.AnswerResult
	err    error
	asked  string
}

func (s *stubAnswerer) Answer(_ context.Context, question string) (*model.AnswerResult, error) {
	s.asked = question
	return s.result, s.err
}

func newServer(stub *stubAnswerer) *httptest.Server {
	return httptest.NewServer(server.New(":0", stub).Handler)
}

func TestHealthz(t *testing.T) {
	srv := newServer(&stubAnswerer{})
	defer srv.Close()

	resp := gt.R1(http.Get(srv.URL + "/healthz")).NoError(t)
	defer resp.Body.Close()
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)

	var body map[string]bool
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	gt.V(t, body["ok"]).Equal(true)
}

func TestAskGet(t *testing.T) {
	stub := &stubAnswerer{result: &model.AnswerResult{
		Text:       "She prefers the aisle seat.",
		Iterations: 2,
		MemberID:   "u1",
	}}
	srv := newServer(stub)
	defer srv.Close()

	resp := gt.R1(http.Get(srv.URL + "/ask?question=what+seat+does+Sophia+like%3F")).NoError(t)
	defer resp.Body.Close()
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)

	var body map[string]any
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	gt.V(t, body["answer"]).Equal("She prefers the aisle seat.")
	gt.V(t, body["iterations"]).Equal(float64(2))
	gt.V(t, body["member_id"]).Equal("u1")
	gt.V(t, stub.asked).Equal("what seat does Sophia like?")
}

func TestAskPost(t *testing.T) {
	stub := &stubAnswerer{result: &model.AnswerResult{Text: "42", Iterations: 1}}
	srv := newServer(stub)
	defer srv.Close()

	resp := gt.R1(http.Post(srv.URL+"/ask", "application/json",
		strings.NewReader(`{"question": "what is the answer?"}`))).NoError(t)
	defer resp.Body.Close()
	gt.V(t, resp.StatusCode).Equal(http.StatusOK)
	gt.V(t, stub.asked).Equal("what is the answer?")
}

func TestAskTooShort(t *testing.T) {
	srv := newServer(&stubAnswerer{})
	defer srv.Close()

	for _, q := range []string{"", "hi", "  a  "} {
		resp := gt.R1(http.Get(srv.URL + "/ask?question=" + strings.ReplaceAll(q, " ", "+"))).NoError(t)
		resp.Body.Close()
		gt.V(t, resp.StatusCode).Equal(http.StatusUnprocessableEntity)
	}
}

func TestAskInvalidBody(t *testing.T) {
	srv := newServer(&stubAnswerer{})
	defer srv.Close()

	resp := gt.R1(http.Post(srv.URL+"/ask", "application/json", strings.NewReader("{broken"))).NoError(t)
	defer resp.Body.Close()
	gt.V(t, resp.StatusCode).Equal(http.StatusUnprocessableEntity)
}

func TestAskInternalError(t *testing.T) {
	srv := newServer(&stubAnswerer{err: errors.New("engine down")})
	defer srv.Close()

	resp := gt.R1(http.Get(srv.URL + "/ask?question=what+seat+does+Sophia+like%3F")).NoError(t)
	defer resp.Body.Close()
	gt.V(t, resp.StatusCode).Equal(http.StatusInternalServerError)

	var body map[string]string
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	gt.S(t, body["detail"]).Contains("engine down")
}
