package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageVersion guards against incompatible payloads after a deploy skew.
const MessageVersion = 1

// Message is the job envelope for one processing attempt of a document.
type Message struct {
	DocumentID string    `json:"documentId"`
	Attempt    int       `json:"attempt"`
	RequestID  string    `json:"requestId,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Version    int       `json:"version"`
}

func NewMessage(documentID, requestID string, attempt int) Message {
	return Message{
		DocumentID: documentID,
		Attempt:    attempt,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC(),
		Version:    MessageVersion,
	}
}

func (m Message) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode queue message: %w", err)
	}
	return string(b), nil
}

func Decode(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	if m.DocumentID == "" {
		return Message{}, fmt.Errorf("queue message missing documentId")
	}
	if m.Version != MessageVersion {
		return Message{}, fmt.Errorf("unsupported queue message version %d", m.Version)
	}
	return m, nil
}
