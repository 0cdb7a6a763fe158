package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Stage completed successfully
	SymbolFail     = "✗" // Stage failed
	SymbolPending  = "○" // Stage not yet started
	SymbolProgress = "◐" // Stage in progress
	SymbolComplete = "●" // Stage done
	SymbolSkipped  = "⊘" // Stage skipped
	SymbolEntry    = "·" // Archive entry in a listing
)
