package domain

import "testing"

func TestNewPayloadSortsObjectKeys(t *testing.T) {
	payload, err := NewPayload([]byte(`{"zeta": 1, "alpha": {"b": 2, "a": 1}}`))
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	want := `{"alpha":{"a":1,"b":2},"zeta":1}`
	if payload.String() != want {
		t.Fatalf("expected canonical %q, got %q", want, payload.String())
	}
}

func TestNewPayloadPreservesNumberText(t *testing.T) {
	payload, err := NewPayload([]byte(`{"amount": 10.50, "count": 3}`))
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	want := `{"amount":10.50,"count":3}`
	if payload.String() != want {
		t.Fatalf("expected %q, got %q", want, payload.String())
	}
}

func TestNewPayloadEmptyBecomesEmptyObject(t *testing.T) {
	payload, err := NewPayload(nil)
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	if payload.String() != "{}" {
		t.Fatalf("expected empty object, got %q", payload.String())
	}
}

func TestNewPayloadRejectsMalformedJSON(t *testing.T) {
	if _, err := NewPayload([]byte(`{"open":`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestNewPayloadRejectsTrailingData(t *testing.T) {
	if _, err := NewPayload([]byte(`{} {}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestNewPayloadDoesNotEscapeHTML(t *testing.T) {
	payload, err := NewPayload([]byte(`{"note":"a<b>&c"}`))
	if err != nil {
		t.Fatalf("new payload: %v", err)
	}
	want := `{"note":"a<b>&c"}`
	if payload.String() != want {
		t.Fatalf("expected %q, got %q", want, payload.String())
	}
}

func TestNewPayloadIsIdempotent(t *testing.T) {
	first, err := NewPayload([]byte(`{"b": [1, {"y": 2, "x": 1}], "a": null}`))
	if err != nil {
		t.Fatalf("first canonicalization: %v", err)
	}
	second, err := NewPayload([]byte(first))
	if err != nil {
		t.Fatalf("second canonicalization: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("canonical form drifted: %q != %q", first, second)
	}
}

func TestPayloadFromMap(t *testing.T) {
	payload, err := PayloadFromMap(map[string]any{"kind": "signup", "attempt": 1})
	if err != nil {
		t.Fatalf("payload from map: %v", err)
	}
	want := `{"attempt":1,"kind":"signup"}`
	if payload.String() != want {
		t.Fatalf("expected %q, got %q", want, payload.String())
	}
}
