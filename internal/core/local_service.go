package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/kfget/kfget/internal/batch"
	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// LocalPipelineService runs the orchestrator in-process and fans pipeline
// events out to every subscribed front-end.
type LocalPipelineService struct {
	orchestrator *batch.Orchestrator
	eventCh      chan any

	mu          sync.Mutex
	subscribers map[int]chan any
	nextSubID   int
	lastResults []types.DownloadResult

	done chan struct{}
}

// NewLocalPipelineService builds the service and starts the event fan-out
// loop.
func NewLocalPipelineService(runtime *types.RuntimeConfig) *LocalPipelineService {
	s := &LocalPipelineService{
		eventCh:     make(chan any, types.ProgressChannelBuffer),
		subscribers: make(map[int]chan any),
		done:        make(chan struct{}),
	}
	s.orchestrator = batch.New(runtime, s.eventCh)
	go s.fanOut()
	return s
}

// Orchestrator exposes the underlying orchestrator for extractor swaps in
// tests.
func (s *LocalPipelineService) Orchestrator() *batch.Orchestrator {
	return s.orchestrator
}

func (s *LocalPipelineService) fanOut() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.eventCh:
			if bd, ok := msg.(events.BatchDoneMsg); ok {
				s.mu.Lock()
				s.lastResults = bd.Results
				s.mu.Unlock()
			}
			s.mu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- msg:
				default:
					// Slow subscriber. Dropping beats stalling the batch.
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *LocalPipelineService) Start(ctx context.Context, urls []string, destDir string) error {
	if s.orchestrator.State() != batch.Idle {
		return fmt.Errorf("a batch is already running")
	}
	go func() {
		if _, err := s.orchestrator.Run(ctx, urls, destDir); err != nil {
			utils.Debug("Batch run failed: %v", err)
			s.eventCh <- events.ItemErrorMsg{Err: err}
			s.eventCh <- events.BatchDoneMsg{}
		}
	}()
	return nil
}

func (s *LocalPipelineService) Cancel() error {
	s.orchestrator.Cancel()
	return nil
}

func (s *LocalPipelineService) CancelItem(requestID string) error {
	s.orchestrator.CancelItem(requestID)
	return nil
}

func (s *LocalPipelineService) State() batch.State {
	return s.orchestrator.State()
}

func (s *LocalPipelineService) Results() []types.DownloadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResults
}

func (s *LocalPipelineService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	ch := make(chan any, types.ProgressChannelBuffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			release()
		}()
	}

	return ch, release, nil
}

func (s *LocalPipelineService) Shutdown() error {
	s.orchestrator.Cancel()
	close(s.done)
	return nil
}
