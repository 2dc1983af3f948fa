package tui

import "time"

// timeRound is the display granularity for elapsed times.
const timeRound = 100 * time.Millisecond

const (
	// InputWidth is the width of the URL text input.
	InputWidth = 60

	DefaultPaddingX = 1
	DefaultPaddingY = 0

	// MaxVisibleItems caps how many batch items the dashboard renders at
	// once before scrolling.
	MaxVisibleItems = 12
)
