package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
	"github.com/wolfman30/missedcall-flow/internal/category"
	"github.com/wolfman30/missedcall-flow/internal/conversation"
	"github.com/wolfman30/missedcall-flow/internal/messaging"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

type stubConversation struct {
	calls    []conversation.MissedCall
	replies  []conversation.InboundReply
	callErr  error
	replyErr map[string]error
}

func (s *stubConversation) HandleMissedCall(ctx context.Context, call conversation.MissedCall) (*conversation.Outcome, error) {
	s.calls = append(s.calls, call)
	if s.callErr != nil {
		return nil, s.callErr
	}
	return &conversation.Outcome{
		Action:    conversation.ActionIntroSent,
		CallerID:  call.CallerID,
		Category:  "emergency_repair_vodoinstalater",
		SessionID: "sess-1",
		To:        catalog.StageIntro,
		Template:  "emergency_repair_vodoinstalater_pm_intro",
	}, nil
}

func (s *stubConversation) HandleInboundBatch(ctx context.Context, replies []conversation.InboundReply) []conversation.ReplyResult {
	s.replies = append(s.replies, replies...)
	out := make([]conversation.ReplyResult, 0, len(replies))
	for _, r := range replies {
		res := conversation.ReplyResult{Reply: r}
		if err := s.replyErr[r.MessageID]; err != nil {
			res.Err = err
		} else {
			res.Outcome = &conversation.Outcome{Action: conversation.ActionAdvanced, CallerID: r.From}
		}
		out = append(out, res)
	}
	return out
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestMissedCallHandler(t *testing.T) {
	conv := &stubConversation{}
	h := NewConversationHandler(conv, "", logging.Default())

	rec := postJSON(h.MissedCall, "/missed-call", `{"phone_number":"385 91 123 4567","business_id":"B1","profession":"Vodoinstalater"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "intro_sent", resp["status"])
	assert.Equal(t, "+385911234567", resp["phone_number"])
	assert.Equal(t, "Vodoinstalater", resp["profession"])
	assert.Equal(t, "emergency_repair_vodoinstalater", resp["category"])

	require.Len(t, conv.calls, 1)
	assert.Equal(t, "+385911234567", conv.calls[0].CallerID)
	assert.Equal(t, "B1", conv.calls[0].BusinessRef)
}

func TestMissedCallHandlerRejectsMissingFields(t *testing.T) {
	conv := &stubConversation{}
	h := NewConversationHandler(conv, "", logging.Default())

	for _, body := range []string{
		`{"business_id":"B1","profession":"Vodoinstalater"}`,
		`{"phone_number":"+385911234567","business_id":"B1"}`,
		`{"phone_number":"abc","profession":"Vodoinstalater"}`,
		`not json`,
	} {
		rec := postJSON(h.MissedCall, "/missed-call", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, conv.calls)
}

func TestMissedCallHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown category", fmt.Errorf("%w: %q", category.ErrUnknownCategory, "Astronaut"), http.StatusBadRequest},
		{"missing template", fmt.Errorf("%w: x", catalog.ErrMissingTemplate), http.StatusInternalServerError},
		{"dispatch failure", &messaging.DispatchFailure{HTTPStatus: 401, Body: "unauthorized"}, http.StatusBadGateway},
		{"store failure", errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewConversationHandler(&stubConversation{callErr: tc.err}, "", logging.Default())
			rec := postJSON(h.MissedCall, "/missed-call", `{"phone_number":"+385911234567","business_id":"B1","profession":"x"}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

const inboundBody = `{"results":[
 {"from":"385911234567","to":"385910000000","messageId":"w1","message":{"type":"BUTTON","text":"Hitno"}},
 {"from":"385921111111","to":"385910000000","messageId":"w2","message":{"type":"TEXT","text":"pozdrav"}}
]}`

func TestInfobipInboundHandler(t *testing.T) {
	conv := &stubConversation{}
	h := NewConversationHandler(conv, "", logging.Default())

	rec := postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", inboundBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, conv.replies, 2)
	assert.Equal(t, "+385911234567", conv.replies[0].From)
	assert.Equal(t, "Hitno", conv.replies[0].QuickReply)
	assert.Equal(t, "pozdrav", conv.replies[1].Text)

	var resp struct {
		Results []inboundItemResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "advanced", resp.Results[0].Action)
}

func TestInfobipInboundHandlerDispatchFailureAsksForRetry(t *testing.T) {
	conv := &stubConversation{replyErr: map[string]error{"w2": &messaging.DispatchFailure{Timeout: true}}}
	h := NewConversationHandler(conv, "", logging.Default())

	rec := postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", inboundBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInfobipInboundHandlerInvalidItemStillOK(t *testing.T) {
	conv := &stubConversation{replyErr: map[string]error{"w2": conversation.ErrInvalidTrigger}}
	h := NewConversationHandler(conv, "", logging.Default())

	rec := postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", inboundBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInfobipInboundHandlerToken(t *testing.T) {
	conv := &stubConversation{}
	h := NewConversationHandler(conv, "s3cret", logging.Default())

	rec := postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", inboundBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/infobip/whatsapp", strings.NewReader(inboundBody))
	req.Header.Set(webhookTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	h.InfobipInbound(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	rec = postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp?token=s3cret", inboundBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInfobipInboundHandlerBadPayloads(t *testing.T) {
	h := NewConversationHandler(&stubConversation{}, "", logging.Default())

	rec := postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", `{"results":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(h.InfobipInbound, "/webhooks/infobip/whatsapp", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
