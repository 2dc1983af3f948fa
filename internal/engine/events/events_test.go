package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kfget/kfget/internal/engine/types"
)

func TestItemErrorMsgJSON(t *testing.T) {
	msg := ItemErrorMsg{
		RequestID: "req-1",
		URL:       "https://kr.linkkf.net/player/v1-sub-1/",
		Err:       types.Errorf(types.KindExtraction, "locate media source", "no source element"),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"Kind":"extraction"`) {
		t.Errorf("encoded message missing error kind: %s", data)
	}

	var decoded ItemErrorMsg
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.RequestID != "req-1" {
		t.Errorf("RequestID = %q", decoded.RequestID)
	}
	if decoded.Err == nil {
		t.Fatal("error lost in round trip")
	}
	if !strings.Contains(decoded.Err.Error(), "locate media source") {
		t.Errorf("error text lost: %v", decoded.Err)
	}
}

func TestItemErrorMsgJSONNilError(t *testing.T) {
	data, err := json.Marshal(ItemErrorMsg{RequestID: "req-2"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ItemErrorMsg
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Err != nil {
		t.Errorf("nil error became %v", decoded.Err)
	}
}

func TestItemErrorMsgJSONLegacyPayload(t *testing.T) {
	var decoded ItemErrorMsg
	if err := json.Unmarshal([]byte(`{"RequestID":"req-3","Err":{}}`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.RequestID != "req-3" {
		t.Errorf("RequestID = %q", decoded.RequestID)
	}
}
