package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the width below which the customer column and
	// the long command hints are dropped.
	LayoutCompactWidth = 90

	// LayoutWideWidth is the width at which the serial column is shown.
	LayoutWideWidth = 120
)

// Rows taken by the header and command bar.
const (
	chromeRows = 2
	minRows    = 6
)

// Timing constants.
const (
	// DefaultUIInterval is how often the UI reads the shared store.
	DefaultUIInterval = time.Second

	// RequestTimeout bounds a single UI initiated backend call.
	RequestTimeout = 15 * time.Second
)
