package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
)

// ProgressMsg reports unit progress within a phase. It is emitted at every
// phase transition (with zero units when the phase has no unit count yet)
// and whenever completed units advance.
type ProgressMsg struct {
	RequestID string
	Phase     types.Phase
	Completed int64
	Total     int64
	Message   string
}

// ItemQueuedMsg is sent when the orchestrator accepts a URL into the batch.
type ItemQueuedMsg struct {
	RequestID string
	URL       string
}

// ItemStartedMsg is sent when a worker picks the request up.
type ItemStartedMsg struct {
	RequestID string
	URL       string
	ContentID int
	SubIndex  int
}

// ItemCompleteMsg signals that one request finished successfully.
type ItemCompleteMsg struct {
	RequestID  string
	OutputPath string
	Elapsed    time.Duration
	Bytes      int64
}

// ItemErrorMsg signals that one request failed. The batch continues.
type ItemErrorMsg struct {
	RequestID string
	URL       string
	Err       error
}

func (m ItemErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		RequestID string `json:"RequestID"`
		URL       string `json:"URL,omitempty"`
		Err       string `json:"Err,omitempty"`
		Kind      string `json:"Kind,omitempty"`
	}

	out := encoded{
		RequestID: m.RequestID,
		URL:       m.URL,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
		out.Kind = types.KindOf(m.Err).String()
	}

	return json.Marshal(out)
}

func (m *ItemErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		RequestID string          `json:"RequestID"`
		URL       string          `json:"URL"`
		Err       json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.RequestID = aux.RequestID
	m.URL = aux.URL
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}) from older writers.
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// ItemSkippedMsg is sent when a request duplicates an earlier item
// (same content id and sub index) and is not run.
type ItemSkippedMsg struct {
	RequestID   string
	URL         string
	DuplicateOf string
}

// BatchDoneMsg is the final message of a batch run.
type BatchDoneMsg struct {
	Results []types.DownloadResult
	Elapsed time.Duration
}
