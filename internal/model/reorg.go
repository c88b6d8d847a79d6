package model

import "time"

// ReorgEvent describes a resolved chain reorganization.
type ReorgEvent struct {
	DetectedHeight uint64    `json:"detected_height"`
	AncestorHeight uint64    `json:"ancestor_height"`
	OldHash        string    `json:"old_hash"`
	NewParentHash  string    `json:"new_parent_hash"`
	Depth          uint64    `json:"depth"`
	Severity       string    `json:"severity"`
	DetectedAt     time.Time `json:"detected_at"`
}

// ReorgSeverity grades a reorg by the number of blocks it replaced.
func ReorgSeverity(depth uint64) string {
	switch {
	case depth <= 1:
		return "minor"
	case depth <= 5:
		return "major"
	default:
		return "critical"
	}
}
