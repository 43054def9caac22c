package infobipclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sendSuccess = `{
  "bulkId": "bulk-1",
  "messages": [{
    "to": "385911234567",
    "messageCount": 1,
    "messageId": "msg-abc",
    "status": {"groupId": 1, "groupName": "PENDING", "id": 7, "name": "PENDING_ENQUEUED", "description": "Message sent to next instance"}
  }]
}`

func TestSendTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != templatePath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "App secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		var body templateRequest
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Messages) != 1 {
			t.Fatalf("expected one message, got %d", len(body.Messages))
		}
		m := body.Messages[0]
		if m.From != "385910000000" || m.To != "+385911234567" {
			t.Fatalf("unexpected from/to: %s %s", m.From, m.To)
		}
		if m.Content.TemplateName != "emergency_repair_vodoinstalater_pm_intro" || m.Content.Language != "hr" {
			t.Fatalf("unexpected content: %#v", m.Content)
		}
		if len(m.Content.TemplateData.Buttons) != 2 || m.Content.TemplateData.Buttons[0].Type != "QUICK_REPLY" || m.Content.TemplateData.Buttons[1].Parameter != "Nije hitno" {
			t.Fatalf("unexpected buttons: %#v", m.Content.TemplateData.Buttons)
		}
		if m.Content.TemplateData.Body.Placeholders == nil {
			t.Fatalf("placeholders must serialize as an array")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sendSuccess))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := client.SendTemplate(context.Background(), TemplateMessage{
		From:         "385910000000",
		To:           "+385911234567",
		TemplateName: "emergency_repair_vodoinstalater_pm_intro",
		Language:     "hr",
		QuickReplies: []string{"Hitno", "Nije hitno"},
	})
	if err != nil {
		t.Fatalf("send template: %v", err)
	}
	if res.MessageID != "msg-abc" || res.Status.GroupName != "PENDING" || res.BulkID != "bulk-1" {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestSendTemplateOmitsButtonsWhenNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var generic map[string]any
		if err := json.Unmarshal(raw, &generic); err != nil {
			t.Fatalf("decode: %v", err)
		}
		content := generic["messages"].([]any)[0].(map[string]any)["content"].(map[string]any)
		data := content["templateData"].(map[string]any)
		if _, ok := data["buttons"]; ok {
			t.Fatalf("buttons should be omitted, got %s", raw)
		}
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := client.SendTemplate(context.Background(), TemplateMessage{
		From: "1", To: "+2", TemplateName: "x", Language: "hr",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.To != "+2" {
		t.Fatalf("expected recipient echoed back, got %#v", res)
	}
}

func TestSendTemplateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"requestError":{"serviceException":{"messageId":"UNAUTHORIZED","text":"Invalid login details"}}}`))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "bad"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.SendTemplate(context.Background(), TemplateMessage{
		From: "1", To: "+2", TemplateName: "x", Language: "hr",
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.MessageID != "UNAUTHORIZED" || apiErr.Text != "Invalid login details" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if apiErr.Body == "" {
		t.Fatalf("expected raw body to be kept")
	}
}

func TestSendTemplateNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, APIKey: "k"})
	_, err := client.SendTemplate(context.Background(), TemplateMessage{From: "1", To: "+2", TemplateName: "x", Language: "hr"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Body != "upstream down" {
		t.Fatalf("unexpected error: %#v", err)
	}
}

func TestSendTemplateContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(sendSuccess))
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, APIKey: "k"})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.SendTemplate(ctx, TemplateMessage{From: "1", To: "+2", TemplateName: "x", Language: "hr"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "x.api.infobip.com"}); err == nil {
		t.Fatalf("expected api key validation error")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected base url validation error")
	}
	client, err := New(Config{APIKey: "k", BaseURL: "x.api.infobip.com/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.baseURL != "https://x.api.infobip.com" {
		t.Fatalf("unexpected base url %s", client.baseURL)
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout")
	}
}

func TestTemplateMessageValidation(t *testing.T) {
	client, _ := New(Config{APIKey: "k", BaseURL: "http://unused"})
	for _, msg := range []TemplateMessage{
		{To: "+2", TemplateName: "x", Language: "hr"},
		{From: "1", TemplateName: "x", Language: "hr"},
		{From: "1", To: "+2", Language: "hr"},
		{From: "1", To: "+2", TemplateName: "x"},
	} {
		if _, err := client.SendTemplate(context.Background(), msg); err == nil {
			t.Fatalf("expected validation error for %#v", msg)
		}
	}
}
