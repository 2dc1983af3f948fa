package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kfget/kfget/internal/batch"
	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/testutil"
)

func serviceRuntime(t *testing.T) *types.RuntimeConfig {
	t.Helper()
	tool := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := `#!/bin/sh
last=""
for a in "$@"; do last="$a"; done
echo "merged" > "$last"
`
	if err := os.WriteFile(tool, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return &types.RuntimeConfig{
		FFmpegPath:   tool,
		HTTPTimeout:  5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 10 * time.Millisecond,
	}
}

func TestLocalServiceRunsBatchAndStreamsEvents(t *testing.T) {
	site := testutil.NewMockSite(testutil.WithFrameCount(2))
	defer site.Close()

	svc := NewLocalPipelineService(serviceRuntime(t))
	defer svc.Shutdown()

	ch, release, err := svc.StreamEvents(context.Background())
	if err != nil {
		t.Fatalf("StreamEvents failed: %v", err)
	}
	defer release()

	if err := svc.Start(context.Background(), []string{site.PlayerURL(1, 1)}, t.TempDir()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(30 * time.Second)
	var sawComplete bool
	for {
		select {
		case msg := <-ch:
			switch msg.(type) {
			case events.ItemCompleteMsg:
				sawComplete = true
			case events.BatchDoneMsg:
				if !sawComplete {
					t.Error("batch finished without an item completion")
				}
				results := svc.Results()
				if len(results) != 1 {
					t.Fatalf("Results() = %d entries, want 1", len(results))
				}
				if results[0].Failed() {
					t.Fatalf("item failed: %v", results[0].Err)
				}
				return
			}
		case <-deadline:
			t.Fatal("batch never finished")
		}
	}
}

func TestLocalServiceRejectsSecondBatch(t *testing.T) {
	site := testutil.NewMockSite(testutil.WithFrameCount(2), testutil.WithLatency(200*time.Millisecond))
	defer site.Close()

	svc := NewLocalPipelineService(serviceRuntime(t))
	defer svc.Shutdown()

	dest := t.TempDir()
	if err := svc.Start(context.Background(), []string{site.PlayerURL(2, 1)}, dest); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait until the orchestrator has actually left Idle.
	for i := 0; i < 100 && svc.State() == batch.Idle; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.State() == batch.Idle {
		t.Skip("batch finished before the second Start could race it")
	}

	if err := svc.Start(context.Background(), []string{site.PlayerURL(3, 1)}, dest); err == nil {
		t.Error("second Start while running should fail")
	}
}

func TestLocalServiceSubscriberRelease(t *testing.T) {
	svc := NewLocalPipelineService(serviceRuntime(t))
	defer svc.Shutdown()

	_, release, err := svc.StreamEvents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	release()

	svc.mu.Lock()
	n := len(svc.subscribers)
	svc.mu.Unlock()
	if n != 0 {
		t.Errorf("subscriber not released, %d left", n)
	}
}
