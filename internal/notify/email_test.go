package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

func sampleEmail() Email {
	return Email{
		To:       "ivan@horvat.hr",
		ToName:   "Vodoinstalater Horvat",
		ReplyTo:  "ured@horvat.hr",
		Subject:  "Novi zahtjev (Hitno) od +385911234567",
		Text:     "tekst",
		HTML:     "<p>tekst</p>",
		RecordID: "rec-1",
		Category: "emergency_repair_vodoinstalater",
	}
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "",
		FromEmail: "obavijesti@example.hr",
	}, nil)

	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{
		APIKey:    "test-key",
		FromEmail: "obavijesti@example.hr",
	}, nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

type fakeSendGrid struct {
	mail   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.mail = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{
		StatusCode: f.status,
		Headers:    map[string][]string{"X-Message-Id": {"sg-1"}},
	}, nil
}

func TestSendGridSender_BuildsRequestMail(t *testing.T) {
	api := &fakeSendGrid{status: http.StatusAccepted}
	sender := newSendGridSenderWithAPI(api, SendGridConfig{FromEmail: "obavijesti@example.hr"}, nil)

	if err := sender.Send(context.Background(), sampleEmail()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := api.mail
	if m.From.Address != "obavijesti@example.hr" || m.From.Name != defaultFromName {
		t.Errorf("unexpected from %+v", m.From)
	}
	if m.ReplyTo == nil || m.ReplyTo.Address != "ured@horvat.hr" {
		t.Errorf("expected reply-to ured@horvat.hr, got %+v", m.ReplyTo)
	}
	if len(m.Personalizations) != 1 || m.Personalizations[0].To[0].Address != "ivan@horvat.hr" {
		t.Fatalf("unexpected personalizations %+v", m.Personalizations)
	}
	if got := m.Personalizations[0].CustomArgs["record_id"]; got != "rec-1" {
		t.Errorf("expected record_id custom arg, got %q", got)
	}
	if len(m.Content) != 2 || m.Content[0].Type != "text/plain" || m.Content[1].Type != "text/html" {
		t.Errorf("expected plain then html content, got %+v", m.Content)
	}
	if len(m.Categories) != 2 || m.Categories[0] != mailCategory || m.Categories[1] != "emergency_repair_vodoinstalater" {
		t.Errorf("unexpected categories %v", m.Categories)
	}
}

func TestSendGridSender_NoReplyToForPrimaryInbox(t *testing.T) {
	api := &fakeSendGrid{status: http.StatusAccepted}
	sender := newSendGridSenderWithAPI(api, SendGridConfig{FromEmail: "obavijesti@example.hr"}, nil)

	msg := sampleEmail()
	msg.ReplyTo = ""
	msg.HTML = ""
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.mail.ReplyTo != nil {
		t.Errorf("expected no reply-to, got %+v", api.mail.ReplyTo)
	}
	if len(api.mail.Content) != 1 {
		t.Errorf("expected plain text only, got %+v", api.mail.Content)
	}
}

func TestSendGridSender_Failures(t *testing.T) {
	for name, api := range map[string]*fakeSendGrid{
		"transport": {err: errors.New("connection reset")},
		"status":    {status: http.StatusTooManyRequests},
	} {
		t.Run(name, func(t *testing.T) {
			sender := newSendGridSenderWithAPI(api, SendGridConfig{FromEmail: "obavijesti@example.hr"}, nil)
			if err := sender.Send(context.Background(), sampleEmail()); !errors.Is(err, ErrDeliveryFailed) {
				t.Errorf("expected ErrDeliveryFailed, got %v", err)
			}
		})
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}

	if err := sender.Send(context.Background(), sampleEmail()); err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)

	if err := sender.Send(context.Background(), sampleEmail()); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSenderWithAPI(api, SESConfig{FromEmail: "obavijesti@example.hr", FromName: "Obavijesti"}, nil)

	if err := sender.Send(context.Background(), sampleEmail()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "Obavijesti <obavijesti@example.hr>" {
		t.Errorf("unexpected from address %q", got)
	}
	if api.input.Destination.ToAddresses[0] != "ivan@horvat.hr" {
		t.Errorf("unexpected destination %v", api.input.Destination.ToAddresses)
	}
	if len(api.input.ReplyToAddresses) != 1 || api.input.ReplyToAddresses[0] != "ured@horvat.hr" {
		t.Errorf("unexpected reply-to %v", api.input.ReplyToAddresses)
	}
	if aws.ToString(api.input.Content.Simple.Body.Html.Data) != "<p>tekst</p>" {
		t.Errorf("expected html body to be set")
	}

	tags := map[string]string{}
	for _, tag := range api.input.EmailTags {
		tags[aws.ToString(tag.Name)] = aws.ToString(tag.Value)
	}
	if tags["record_id"] != "rec-1" || tags["category"] != "emergency_repair_vodoinstalater" || tags["kind"] != mailCategory {
		t.Errorf("unexpected tags %v", tags)
	}
}

func TestSESSender_SendError(t *testing.T) {
	api := &fakeSES{err: errors.New("throttled")}
	sender := newSESSenderWithAPI(api, SESConfig{FromEmail: "obavijesti@example.hr"}, nil)

	err := sender.Send(context.Background(), Email{To: "ured@horvat.hr", Subject: "x", Text: "y"})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestSESTagValue(t *testing.T) {
	if got := sesTagValue("rec 1/ž"); got != "rec_1__" {
		t.Errorf("unexpected tag value %q", got)
	}
}
