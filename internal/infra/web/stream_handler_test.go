package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/ports/adapter"
	"ai-chat-backend/internal/usecase"
)

func postMessage(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/c1/message", strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// sseEvents splits a raw SSE body into event-name -> data lines, in order.
func sseEvents(body string) []string {
	var events []string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			events = append(events, block)
		}
	}
	return events
}

func TestSendMessage_StreamsFragmentsThenDone(t *testing.T) {
	streamUC := &stubStreamUC{
		sendFn: func(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error) {
			if chatID != "c1" || text != "hi there" {
				t.Errorf("got chatID=%q text=%q", chatID, text)
			}
			for _, fr := range []string{"Hello", " world"} {
				if err := onFragment(fr); err != nil {
					return nil, err
				}
			}
			return &usecase.StreamResult{AssistantMessageID: "m-9", TokensUsed: 42, Fragments: 2}, nil
		},
	}
	rec := postMessage(t, newTestRouter(nil, streamUC, nil, nil), `{"message":"hi there"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}

	events := sseEvents(rec.Body.String())
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %q", len(events), events)
	}
	if !strings.Contains(events[0], "event: message") || !strings.Contains(events[0], `"content":"Hello"`) {
		t.Errorf("first event = %q", events[0])
	}
	if !strings.Contains(events[1], `"content":" world"`) {
		t.Errorf("second event = %q", events[1])
	}
	last := events[2]
	if !strings.Contains(last, "event: done") ||
		!strings.Contains(last, `"tokens_used":42`) ||
		!strings.Contains(last, `"message_id":"m-9"`) {
		t.Errorf("terminal event = %q", last)
	}
}

func TestSendMessage_ErrorsEndWithErrorEvent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"generation failure", fmt.Errorf("%w: upstream 500", domain.ErrGenerationFailed), "GENERATION_FAILED"},
		{"quota exhausted", domain.ErrTokenQuotaExceeded, "TOKEN_QUOTA_EXCEEDED"},
		{"deleted chat", domain.ErrNotFound, "NOT_FOUND"},
		{"chat busy", domain.ErrChatBusy, "CHAT_BUSY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			streamUC := &stubStreamUC{
				sendFn: func(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error) {
					return nil, tc.err
				},
			}
			rec := postMessage(t, newTestRouter(nil, streamUC, nil, nil), `{"message":"hi"}`)

			// The stream is already committed; failures arrive as a
			// terminal event, never as a bare close.
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, "event: error") || !strings.Contains(body, tc.code) {
				t.Errorf("body = %q, want error event with %s", body, tc.code)
			}
			if strings.Contains(body, "event: done") {
				t.Errorf("body = %q, must not contain a done event", body)
			}
		})
	}
}

func TestSendMessage_PartialThenError(t *testing.T) {
	streamUC := &stubStreamUC{
		sendFn: func(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error) {
			if err := onFragment("partial"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: stream died", domain.ErrGenerationFailed)
		},
	}
	rec := postMessage(t, newTestRouter(nil, streamUC, nil, nil), `{"message":"hi"}`)

	events := sseEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want fragment then error: %q", len(events), events)
	}
	if !strings.Contains(events[0], `"content":"partial"`) {
		t.Errorf("first event = %q", events[0])
	}
	if !strings.Contains(events[1], "event: error") {
		t.Errorf("second event = %q", events[1])
	}
}

func TestSendMessage_EmptyBody(t *testing.T) {
	rec := postMessage(t, newTestRouter(nil, nil, nil, nil), `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendMessage_RateLimited(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	rec := postMessage(t, newTestRouter(nil, nil, nil, limiter), `{"message":"hi"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "RATE_LIMITED" {
		t.Errorf("error code = %v, want RATE_LIMITED", body["error"])
	}
	if limiter.calls != 1 {
		t.Errorf("limiter consulted %d times, want 1", limiter.calls)
	}
}

func TestSendMessage_LimiterOutageAdmits(t *testing.T) {
	streamUC := &stubStreamUC{
		sendFn: func(ctx context.Context, userID, chatID, text string, onFragment adapter.FragmentFunc) (*usecase.StreamResult, error) {
			return &usecase.StreamResult{TokensUsed: 1}, nil
		},
	}
	limiter := &stubLimiter{allow: false, err: errors.New("redis down")}
	rec := postMessage(t, newTestRouter(nil, streamUC, nil, limiter), `{"message":"hi"}`)

	// A broken limiter fails open.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "event: done") {
		t.Errorf("body = %q, want done event", rec.Body.String())
	}
}
