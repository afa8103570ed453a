package notify

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build(Kind("pager"), nil, DefaultDefaults())
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Build(pager) error = %v, want ErrUnknownKind", err)
	}
}

func TestBuild_ConfigErrors(t *testing.T) {
	withCreds := DefaultDefaults()
	withCreds.SMTP.Username = "bot@example.com"
	withCreds.SMTP.Password = "secret"
	withCreds.Twilio = TwilioDefaults{AccountSID: "AC123", AuthToken: "tok", FromNumber: "+15550000000"}

	tests := []struct {
		name      string
		kind      Kind
		raw       string
		defaults  Defaults
		wantField string
	}{
		{"email missing to", KindEmail, `{}`, withCreds, "to_email"},
		{"email bad address", KindEmail, `{"to_email":"not an address"}`, withCreds, "to_email"},
		{"email no credentials", KindEmail, `{"to_email":"ops@example.com"}`, DefaultDefaults(), "username"},
		{"slack missing url", KindSlack, `{}`, withCreds, "webhook_url"},
		{"slack relative url", KindSlack, `{"webhook_url":"/hooks/abc"}`, withCreds, "webhook_url"},
		{"discord bad scheme", KindDiscord, `{"webhook_url":"ftp://discord.example/x"}`, withCreds, "webhook_url"},
		{"sms missing to", KindSMS, `{}`, withCreds, "to_number"},
		{"sms no credentials", KindSMS, `{"to_number":"+15551234567"}`, DefaultDefaults(), "account_sid"},
		{"malformed json", KindSlack, `{"webhook_url":`, withCreds, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.kind, json.RawMessage(tt.raw), tt.defaults)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Build() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
			if cfgErr.Kind != tt.kind {
				t.Errorf("ConfigError.Kind = %q, want %q", cfgErr.Kind, tt.kind)
			}
		})
	}
}

func TestBuild_ValidConfigs(t *testing.T) {
	d := DefaultDefaults()
	d.SMTP.Username = "bot@example.com"
	d.SMTP.Password = "secret"
	d.Twilio = TwilioDefaults{AccountSID: "AC123", AuthToken: "tok", FromNumber: "+15550000000"}

	cases := map[Kind]string{
		KindEmail:   `{"to_email":"ops@example.com"}`,
		KindSlack:   `{"webhook_url":"https://hooks.slack.example/T/B/X"}`,
		KindDiscord: `{"webhook_url":"https://discord.example/api/webhooks/1/abc"}`,
		KindSMS:     `{"to_number":"+15551234567"}`,
	}
	for kind, raw := range cases {
		ch, err := Build(kind, json.RawMessage(raw), d)
		if err != nil {
			t.Errorf("Build(%s) error = %v", kind, err)
			continue
		}
		if ch.Kind() != kind {
			t.Errorf("Build(%s).Kind() = %s", kind, ch.Kind())
		}
	}
}

func TestKinds_Sorted(t *testing.T) {
	got := Kinds()
	want := []Kind{KindDiscord, KindEmail, KindSMS, KindSlack}
	if len(got) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Kinds()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSendError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := error(&SendError{Kind: KindSlack, Err: inner})
	if !errors.Is(err, inner) {
		t.Error("errors.Is(SendError, inner) = false, want true")
	}
}
