// Package batch runs the extraction-and-download pipeline over a list of
// player URLs and aggregates per-item results.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/kfget/kfget/internal/download"
	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/linkkf"
	"github.com/kfget/kfget/internal/merge"
	"github.com/kfget/kfget/internal/utils"
)

// State is the orchestrator's lifecycle, queryable by the front-end instead
// of an ambient is-running flag.
type State int32

const (
	Idle State = iota
	Running
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelling:
		return "cancelling"
	}
	return "unknown"
}

const lockFileName = ".kfget.lock"

// Orchestrator drives the pipeline per URL with a bounded worker pool. One
// batch runs at a time.
type Orchestrator struct {
	runtime    *types.RuntimeConfig
	fetcher    *linkkf.Fetcher
	extractor  linkkf.Extractor
	merger     *merge.Merger
	progressCh chan<- any

	state atomic.Int32

	mu          sync.Mutex
	batchCancel context.CancelFunc
	itemCancels map[string]context.CancelFunc
}

// New builds an Orchestrator wired to the given progress sink. The sink
// must accept concurrent sends; a buffered channel is enough.
func New(runtime *types.RuntimeConfig, progressCh chan<- any) *Orchestrator {
	fetcher := linkkf.NewFetcher(runtime)
	return &Orchestrator{
		runtime:     runtime,
		fetcher:     fetcher,
		extractor:   linkkf.NewSiteExtractor(fetcher),
		merger:      &merge.Merger{Runtime: runtime},
		progressCh:  progressCh,
		itemCancels: make(map[string]context.CancelFunc),
	}
}

// SetExtractor swaps the extraction strategy. Must be called before Run.
func (o *Orchestrator) SetExtractor(e linkkf.Extractor) {
	o.extractor = e
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Cancel stops the whole in-flight batch: no further network calls are
// issued and partial frame files are cleaned up by the item pipelines.
func (o *Orchestrator) Cancel() {
	if !o.state.CompareAndSwap(int32(Running), int32(Cancelling)) {
		return
	}
	o.mu.Lock()
	cancel := o.batchCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CancelItem stops a single in-flight item; the rest of the batch continues.
func (o *Orchestrator) CancelItem(requestID string) {
	o.mu.Lock()
	cancel := o.itemCancels[requestID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the pipeline for every URL and returns one DownloadResult
// per input, in input order. A single item's failure never aborts the
// batch. Run fails outright only when a batch is already running or the
// destination directory cannot be prepared or locked.
func (o *Orchestrator) Run(ctx context.Context, urls []string, destDir string) ([]types.DownloadResult, error) {
	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil, fmt.Errorf("a batch is already running")
	}
	defer o.state.Store(int32(Idle))

	start := time.Now()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, types.NewError(types.KindIO, "create destination dir", err)
	}

	// One process per destination directory. Two batches writing the same
	// file prefixes would corrupt each other's partial files.
	dirLock := flock.New(filepath.Join(destDir, lockFileName))
	locked, err := dirLock.TryLock()
	if err != nil {
		return nil, types.NewError(types.KindIO, "lock destination dir", err)
	}
	if !locked {
		return nil, fmt.Errorf("destination %s is in use by another kfget instance", destDir)
	}
	defer func() {
		_ = dirLock.Unlock()
		_ = os.Remove(dirLock.Path())
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.batchCancel = cancel
	o.mu.Unlock()

	results := make([]types.DownloadResult, len(urls))

	type job struct {
		index int
		req   *types.DownloadRequest
	}
	var jobs []job

	// Validate everything up front: invalid URLs and in-batch duplicates
	// are settled before any network call.
	seen := make(map[[2]int]string)
	names := newNamer()
	for i, rawURL := range urls {
		req, err := linkkf.ParseRequest(rawURL, destDir)
		if err != nil {
			results[i] = types.DownloadResult{RawURL: rawURL, Err: err}
			o.emit(events.ItemErrorMsg{URL: rawURL, Err: err})
			continue
		}

		key := [2]int{req.ContentID, req.SubIndex}
		if firstID, dup := seen[key]; dup {
			err := types.Errorf(types.KindDuplicate, "queue item",
				"v%d-sub-%d already queued in this batch", req.ContentID, req.SubIndex)
			results[i] = types.DownloadResult{RequestID: req.ID, RawURL: rawURL, Err: err}
			o.emit(events.ItemSkippedMsg{RequestID: req.ID, URL: rawURL, DuplicateOf: firstID})
			continue
		}
		seen[key] = req.ID

		results[i] = types.DownloadResult{RequestID: req.ID, RawURL: rawURL}
		jobs = append(jobs, job{index: i, req: req})
		o.emit(events.ItemQueuedMsg{RequestID: req.ID, URL: rawURL})
	}

	jobCh := make(chan job)
	var wg sync.WaitGroup
	workers := o.runtime.GetBatchWorkers()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				outputPath, err := o.runItem(ctx, j.req, names)
				results[j.index].OutputPath = outputPath
				results[j.index].Err = err
			}
		}()
	}

	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)
	wg.Wait()

	o.emit(events.BatchDoneMsg{Results: results, Elapsed: time.Since(start)})

	return results, nil
}

// runItem runs one request through fetch → extract → download → merge.
func (o *Orchestrator) runItem(ctx context.Context, req *types.DownloadRequest, names *namer) (string, error) {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.itemCancels[req.ID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.itemCancels, req.ID)
		o.mu.Unlock()
	}()

	start := time.Now()
	o.emit(events.ItemStartedMsg{
		RequestID: req.ID,
		URL:       req.RawURL,
		ContentID: req.ContentID,
		SubIndex:  req.SubIndex,
	})

	outputPath, written, err := o.pipeline(itemCtx, req, names)
	if err != nil {
		o.emitPhase(req.ID, types.PhaseFailed, types.KindOf(err).OperatorMessage())
		o.emit(events.ItemErrorMsg{RequestID: req.ID, URL: req.RawURL, Err: err})
		return "", err
	}

	o.emitPhase(req.ID, types.PhaseDone, outputPath)
	o.emit(events.ItemCompleteMsg{
		RequestID:  req.ID,
		OutputPath: outputPath,
		Elapsed:    time.Since(start),
		Bytes:      written,
	})
	return outputPath, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, req *types.DownloadRequest, names *namer) (string, int64, error) {
	o.emitPhase(req.ID, types.PhaseFetching, "")
	pageHTML, err := o.fetcher.FetchPage(ctx, req.RawURL, "")
	if err != nil {
		return "", 0, err
	}

	o.emitPhase(req.ID, types.PhaseExtracting, "")
	desc, err := o.extractor.Extract(ctx, req, pageHTML)
	if err != nil {
		return "", 0, err
	}

	base := names.claim(utils.OutputBase(desc.Title, req.ContentID, req.SubIndex),
		req.ContentID, req.SubIndex)

	if desc.Kind == types.DirectMedia {
		return o.downloadDirect(ctx, req, desc, base)
	}
	return o.downloadSequence(ctx, req, desc, base)
}

func (o *Orchestrator) downloadDirect(ctx context.Context, req *types.DownloadRequest, desc *types.StreamDescriptor, base string) (string, int64, error) {
	d := &download.DirectDownloader{
		Client:       o.fetcher.Client,
		ProgressChan: o.progressCh,
		ID:           req.ID,
		Runtime:      o.runtime,
	}

	probe, err := d.Probe(ctx, desc.MediaURL, desc.Referer)
	if err != nil {
		return "", 0, err
	}

	outputPath := filepath.Join(req.DestDir, base+probe.Extension)

	o.emitPhase(req.ID, types.PhaseDownloading, "")
	written, err := d.Download(ctx, desc.MediaURL, desc.Referer, outputPath)
	if err != nil {
		return "", 0, err
	}

	o.downloadSubtitle(ctx, desc, outputPath)
	return outputPath, written, nil
}

func (o *Orchestrator) downloadSequence(ctx context.Context, req *types.DownloadRequest, desc *types.StreamDescriptor, base string) (string, int64, error) {
	frameDir := filepath.Join(req.DestDir,
		fmt.Sprintf(".kfget-v%d-sub-%d-frames", req.ContentID, req.SubIndex))
	// Frame files are transient: gone after a successful merge, and never
	// left behind by a failed or cancelled item.
	defer func() {
		if err := os.RemoveAll(frameDir); err != nil {
			utils.Debug("Failed to clean frame dir %s: %v", frameDir, err)
		}
	}()

	d := &download.FrameDownloader{
		Client:       o.fetcher.Client,
		ProgressChan: o.progressCh,
		ID:           req.ID,
		Runtime:      o.runtime,
	}

	o.emitPhase(req.ID, types.PhaseDownloading, "")
	framePaths, err := d.DownloadAll(ctx, desc.SegmentURLs, desc.Referer, frameDir)
	if err != nil {
		return "", 0, err
	}

	outputPath := filepath.Join(req.DestDir, base+".mp4")

	var subtitlePath string
	if desc.SubtitleURL != "" {
		subtitlePath = (&download.SubtitleDownloader{
			Client:  o.fetcher.Client,
			Runtime: o.runtime,
		}).Download(ctx, desc.SubtitleURL, desc.Referer, outputPath)
	}

	o.emitPhase(req.ID, types.PhaseMerging, "")
	err = o.merger.Merge(ctx, desc.Kind, framePaths, desc.Durations, subtitlePath, outputPath)
	if err != nil && types.KindOf(err) == types.KindMergeFailed && ctx.Err() == nil {
		// One retry for transient subprocess failures; a missing tool is
		// an environment problem and is surfaced immediately.
		utils.Debug("Merge retry for %s after: %v", req.ID, err)
		err = o.merger.Merge(ctx, desc.Kind, framePaths, desc.Durations, subtitlePath, outputPath)
	}
	if err != nil {
		return "", 0, err
	}

	written := int64(0)
	if info, statErr := os.Stat(outputPath); statErr == nil {
		written = info.Size()
	}

	return outputPath, written, nil
}

func (o *Orchestrator) downloadSubtitle(ctx context.Context, desc *types.StreamDescriptor, outputPath string) {
	if desc.SubtitleURL == "" {
		return
	}
	(&download.SubtitleDownloader{
		Client:  o.fetcher.Client,
		Runtime: o.runtime,
	}).Download(ctx, desc.SubtitleURL, desc.Referer, outputPath)
}

func (o *Orchestrator) emit(msg any) {
	if o.progressCh == nil {
		return
	}
	o.progressCh <- msg
}

func (o *Orchestrator) emitPhase(requestID string, phase types.Phase, message string) {
	o.emit(events.ProgressMsg{
		RequestID: requestID,
		Phase:     phase,
		Message:   message,
	})
}

// namer hands out distinct output base names. Two different requests whose
// page titles collide must not write to the same file prefix.
type namer struct {
	mu    sync.Mutex
	taken map[string]bool
}

func newNamer() *namer {
	return &namer{taken: make(map[string]bool)}
}

func (n *namer) claim(base string, contentID, subIndex int) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.taken[base] {
		n.taken[base] = true
		return base
	}
	distinct := fmt.Sprintf("%s [v%d-sub-%d]", base, contentID, subIndex)
	n.taken[distinct] = true
	return distinct
}
