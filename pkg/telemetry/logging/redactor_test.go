package logging

import "testing"

func TestRedactor_RedactMap(t *testing.T) {
	r := NewRedactor()

	args := map[string]any{
		"service":     "billing-api",
		"db_password": "hunter2",
		"api_key":     "sk-abcdef",
		"nested": map[string]any{
			"auth_token": "t0k3n",
			"replicas":   3,
		},
	}

	got := r.RedactMap(args)

	if got["service"] != "billing-api" {
		t.Errorf("service = %v, want untouched", got["service"])
	}
	if got["db_password"] != RedactedValue {
		t.Errorf("db_password = %v, want redacted", got["db_password"])
	}
	if got["api_key"] != RedactedValue {
		t.Errorf("api_key = %v, want redacted", got["api_key"])
	}

	nested := got["nested"].(map[string]any)
	if nested["auth_token"] != RedactedValue {
		t.Errorf("nested auth_token = %v, want redacted", nested["auth_token"])
	}
	if nested["replicas"] != 3 {
		t.Errorf("nested replicas = %v, want untouched", nested["replicas"])
	}

	// The input map must not be modified.
	if args["db_password"] != "hunter2" {
		t.Error("RedactMap modified its input")
	}
}

func TestRedactor_RedactMap_Nil(t *testing.T) {
	if got := NewRedactor().RedactMap(nil); got != nil {
		t.Errorf("RedactMap(nil) = %v, want nil", got)
	}
}

func TestRedactor_ExtraKeys(t *testing.T) {
	r := NewRedactor("pin")

	got := r.RedactMap(map[string]any{"card_pin": "1234", "name": "x"})
	if got["card_pin"] != RedactedValue {
		t.Errorf("card_pin = %v, want redacted", got["card_pin"])
	}
	if got["name"] != "x" {
		t.Errorf("name = %v, want untouched", got["name"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		if _, err := ParseLevel(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
	if format, err := ParseFormat(""); err != nil || format != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v; want json, nil", format, err)
	}
}
