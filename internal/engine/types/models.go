package types

// StreamKind identifies the shape of an extracted stream.
type StreamKind int

const (
	// DirectMedia is a single playable stream downloaded straight to a file.
	DirectMedia StreamKind = iota
	// ImageSequence is a video delivered as ordered still-image frame URLs
	// that must be assembled into a video by the external merge tool.
	ImageSequence
	// SegmentSequence is an ordered list of transport-stream segments that
	// the merge tool concatenates with stream copy.
	SegmentSequence
)

func (k StreamKind) String() string {
	switch k {
	case DirectMedia:
		return "direct"
	case ImageSequence:
		return "images"
	case SegmentSequence:
		return "segments"
	}
	return "unknown"
}

// DownloadRequest is the validated form of an input URL.
// Immutable after parsing.
type DownloadRequest struct {
	ID        string // uuid
	RawURL    string
	ContentID int
	SubIndex  int
	DestDir   string
}

// StreamDescriptor is the result of extracting a player page.
// For ImageSequence and SegmentSequence, SegmentURLs holds at least one URL
// in playback order; order is significant and preserved end to end.
type StreamDescriptor struct {
	Kind        StreamKind
	MediaURL    string    // DirectMedia only
	SegmentURLs []string  // ImageSequence / SegmentSequence, playback order
	Durations   []float64 // per-segment EXTINF seconds, parallel to SegmentURLs
	SubtitleURL string    // optional, "" when absent
	Referer     string    // Referer to present when fetching media bytes
	Title       string    // page title, used for the output filename
}

// Phase is a pipeline stage reported through progress events.
type Phase string

const (
	PhaseFetching    Phase = "fetching"
	PhaseExtracting  Phase = "extracting"
	PhaseDownloading Phase = "downloading"
	PhaseMerging     Phase = "merging"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// DownloadResult is the terminal value for one request. Exactly one of
// OutputPath and Err is meaningful.
type DownloadResult struct {
	RequestID  string
	RawURL     string
	OutputPath string
	Err        error
}

// Failed reports whether the request ended in an error.
func (r DownloadResult) Failed() bool {
	return r.Err != nil
}
