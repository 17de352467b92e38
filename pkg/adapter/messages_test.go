package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aurora-qa/aurora/pkg/adapter"
	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/gt"
)

func newMessageServer(t *testing.T, msgs []*model.Message, failures *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && atomic.AddInt32(failures, -1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(skip+limit, len(msgs))
		if skip > len(msgs) {
			skip = len(msgs)
		}

		page := model.MessagePage{Items: msgs[skip:end], Total: len(msgs)}
		w.Header().Set("Content-Type", "application/json")
		gt.NoError(t, json.NewEncoder(w).Encode(page))
	}))
}

func makeMessages(n int) []*model.Message {
	msgs := make([]*model.Message, n)
	for i := range msgs {
		msgs[i] = &model.Message{
			ID:         strconv.Itoa(i),
			MemberID:   "u1",
			MemberName: "Test Member",
			Text:       "hello",
			Timestamp:  "2025-06-01T10:00:00Z",
		}
	}
	return msgs
}

func TestFetchAllPagination(t *testing.T) {
	msgs := makeMessages(7)
	srv := newMessageServer(t, msgs, nil)
	defer srv.Close()

	client := adapter.NewMessages(srv.URL, adapter.WithPageLimit(3))
	got := gt.R1(client.FetchAll(context.Background())).NoError(t)
	gt.A(t, got).Length(7)
	gt.V(t, got[6].ID).Equal("6")
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	msgs := makeMessages(2)
	failures := int32(2)
	srv := newMessageServer(t, msgs, &failures)
	defer srv.Close()

	client := adapter.NewMessages(srv.URL,
		adapter.WithPageLimit(10),
		adapter.WithFetchRetries(3, time.Millisecond))
	got := gt.R1(client.FetchAll(context.Background())).NoError(t)
	gt.A(t, got).Length(2)
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	failures := int32(100)
	srv := newMessageServer(t, nil, &failures)
	defer srv.Close()

	client := adapter.NewMessages(srv.URL,
		adapter.WithFetchRetries(2, time.Millisecond))
	gt.R1(client.Fetch(context.Background(), 0, 10)).Error(t)
}

func TestParseTimestampFallback(t *testing.T) {
	msg := &model.Message{Timestamp: "2025-06-01T10:00:00Z"}
	gt.V(t, msg.ParseTimestamp().IsZero()).Equal(false)

	broken := &model.Message{Timestamp: "sometime last week"}
	gt.V(t, broken.ParseTimestamp().IsZero()).Equal(true)
}
