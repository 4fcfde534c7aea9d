package queue

import (
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	m := NewMessage("doc-1", "req-9", 2)
	body, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DocumentID != "doc-1" || got.Attempt != 2 || got.RequestID != "req-9" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestDecodeRejectsMissingDocumentID(t *testing.T) {
	if _, err := Decode(`{"attempt":1,"version":1}`); err == nil {
		t.Fatal("expected error for missing documentId")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := Decode(`{"documentId":"d","attempt":1,"version":99}`)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not json"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
