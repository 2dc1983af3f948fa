package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kfget/kfget/internal/core"
	"github.com/kfget/kfget/internal/engine/types"
)

type UIState int

const (
	DashboardState UIState = iota
	InputState
)

// ItemModel tracks one batch item in the dashboard.
type ItemModel struct {
	RequestID string
	URL       string
	ContentID int
	SubIndex  int

	Phase      types.Phase
	Completed  int64
	Total      int64
	OutputPath string
	Bytes      int64
	StartTime  time.Time
	Elapsed    time.Duration

	progress progress.Model

	skipped bool
	done    bool
	err     error
}

func NewItemModel(requestID, url string) *ItemModel {
	return &ItemModel{
		RequestID: requestID,
		URL:       url,
		Phase:     types.PhaseFetching,
		StartTime: time.Now(),
		progress:  progress.New(progress.WithDefaultGradient()),
	}
}

// RootModel is the top-level bubbletea model. It renders the state of one
// batch and lets the operator queue another when the pipeline is idle.
type RootModel struct {
	service core.PipelineService
	destDir string

	items  []*ItemModel
	byID   map[string]int
	width  int
	height int
	state  UIState

	urlInput textinput.Model
	cursor   int
	scroll   int

	eventCh      <-chan any
	releaseSub   func()
	batchDone    bool
	batchElapsed time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRootModel builds the dashboard around a pipeline service. The
// subscription is opened here so no event emitted during Init is lost.
func NewRootModel(service core.PipelineService, destDir string) (RootModel, error) {
	ctx, cancel := context.WithCancel(context.Background())

	eventCh, release, err := service.StreamEvents(ctx)
	if err != nil {
		cancel()
		return RootModel{}, err
	}

	urlInput := textinput.New()
	urlInput.Placeholder = "https://kr.linkkf.net/player/v401148-sub-1/"
	urlInput.Width = InputWidth
	urlInput.Prompt = ""

	return RootModel{
		service:    service,
		destDir:    destDir,
		items:      make([]*ItemModel, 0),
		byID:       make(map[string]int),
		state:      DashboardState,
		urlInput:   urlInput,
		eventCh:    eventCh,
		releaseSub: release,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (m RootModel) Init() tea.Cmd {
	return listenForActivity(m.eventCh)
}

func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func (m *RootModel) item(requestID string) *ItemModel {
	if idx, ok := m.byID[requestID]; ok {
		return m.items[idx]
	}
	return nil
}

func (m *RootModel) addItem(requestID, url string) *ItemModel {
	it := NewItemModel(requestID, url)
	m.byID[requestID] = len(m.items)
	m.items = append(m.items, it)
	return it
}
