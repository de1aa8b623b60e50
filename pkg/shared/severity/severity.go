// Package severity provides unified severity level definitions for review
// issues reported by the analysis layer.
//
// The analysis layer returns free-text severity labels; this package is the
// single place that normalizes and orders them.
package severity

import "strings"

// Level represents a severity level for review issues.
type Level string

const (
	// Critical - must be fixed before merge. Security holes, data loss, crashes.
	Critical Level = "critical"

	// Major - serious defect that should block merge in most cases.
	Major Level = "major"

	// Minor - worth fixing, but not blocking.
	Minor Level = "minor"

	// Info - informational observation, no defect.
	Info Level = "info"

	// Unknown - label could not be normalized to a known level.
	Unknown Level = "unknown"
)

// AllLevels returns the known severity levels in order of priority
// (highest first). Unknown is excluded.
func AllLevels() []Level {
	return []Level{Critical, Major, Minor, Info}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	return string(l)
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 4
	case Major:
		return 3
	case Minor:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// Known reports whether the level is one of the four recognized severities.
func (l Level) Known() bool {
	return l.Priority() > 0
}

// FromString normalizes various severity label formats to a standard Level.
// Labels that cannot be normalized map to Unknown.
func FromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit", "blocker":
		return Critical
	case "major", "high", "error", "severe":
		return Major
	case "minor", "medium", "low", "warning", "warn":
		return Minor
	case "info", "informational", "note", "style":
		return Info
	default:
		return Unknown
	}
}

// Max returns the higher severity of two levels.
func Max(a, b Level) Level {
	if a.IsHigherThan(b) {
		return a
	}
	return b
}

// CountBySeverity tallies issues by severity level.
//
// Issues whose label is not a recognized level are counted in Total only,
// so Total may exceed the sum of the four named buckets.
type CountBySeverity struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Increment increases the count for the given severity level.
// The level is matched exactly against the known levels, not normalized;
// callers that want fuzzy matching should pass FromString(label).
func (c *CountBySeverity) Increment(level Level) {
	c.Total++
	switch level {
	case Critical:
		c.Critical++
	case Major:
		c.Major++
	case Minor:
		c.Minor++
	case Info:
		c.Info++
	}
}

// Map returns the tally as a map keyed by the four known severities.
// All four keys are always present.
func (c *CountBySeverity) Map() map[string]int {
	return map[string]int{
		Critical.String(): c.Critical,
		Major.String():    c.Major,
		Minor.String():    c.Minor,
		Info.String():     c.Info,
	}
}

// HighestSeverity returns the highest severity level with a non-zero count.
func (c *CountBySeverity) HighestSeverity() Level {
	switch {
	case c.Critical > 0:
		return Critical
	case c.Major > 0:
		return Major
	case c.Minor > 0:
		return Minor
	case c.Info > 0:
		return Info
	default:
		return Unknown
	}
}
