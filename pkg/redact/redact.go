// Package redact detects and masks sensitive substrings in diff text before
// it leaves the process.
//
// Detection is a per-line scan over an ordered, fixed set of category
// detectors. Masking is a two-phase detect-then-replace: all findings are
// collected first, then applied longest-match-first as literal substring
// replacements. Literal replacement means a recurring identical secret is
// masked everywhere it occurs - and so is an unrelated but textually
// identical token. That over-masking is a deliberate, conservative trade-off.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Finding is one detected occurrence of sensitive-looking text.
// Findings are created by Detect and never mutated afterward.
type Finding struct {
	// Category is the detector taxonomy entry that matched.
	Category Category `json:"category"`

	// Original is the matched text. Never serialize this outward.
	Original string `json:"-"`

	// Masked is the replacement text.
	Masked string `json:"masked"`

	// Line is the 1-based line number of the match.
	Line int `json:"line"`

	// File is the path the content came from.
	File string `json:"file"`
}

// customPattern is a user-supplied detector compiled at construction time.
type customPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Filter scans text for sensitive content and masks it.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	custom []customPattern
}

// NewFilter builds a filter, compiling any custom patterns up front.
// A malformed custom pattern fails construction; it must never surface as a
// silently skipped detector in the middle of a scan.
func NewFilter(custom map[string]string) (*Filter, error) {
	f := &Filter{}

	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic scan order

	for _, name := range names {
		re, err := regexp.Compile(custom[name])
		if err != nil {
			return nil, fmt.Errorf("compile custom pattern %q: %w", name, err)
		}
		f.custom = append(f.custom, customPattern{name: name, pattern: re})
	}
	return f, nil
}

// ShouldBypassFile reports whether the file is exempt from scanning because
// its contents are assumed to be illustrative (docs, examples, tests).
func ShouldBypassFile(filename string) bool {
	for _, p := range bypassFilePatterns {
		if p.MatchString(filename) {
			return true
		}
	}
	return false
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range commentMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// Detect scans content line by line and returns every sensitive match.
// Line numbers are 1-based. Comment lines are not scanned, and multiple
// categories may independently match the same line.
func (f *Filter) Detect(content, filename string) []Finding {
	if ShouldBypassFile(filename) {
		return nil
	}

	var findings []Finding
	seen := make(map[string]bool)
	record := func(category Category, match, masked string, line int) {
		// The same secret text matched by two patterns of one category
		// (e.g. a key/value pair whose value also carries a vendor
		// prefix) is a single finding.
		key := string(category) + "\x00" + strconv.Itoa(line) + "\x00" + match
		if seen[key] {
			return
		}
		seen[key] = true
		findings = append(findings, Finding{
			Category: category,
			Original: match,
			Masked:   masked,
			Line:     line,
			File:     filename,
		})
	}

	for i, line := range strings.Split(content, "\n") {
		if isCommentLine(line) {
			continue
		}
		lineNum := i + 1

		for _, d := range detectors {
			for _, p := range d.patterns {
				for _, match := range findMatches(p, line) {
					record(d.category, match, mask(match, d.category), lineNum)
				}
			}
		}

		for _, cp := range f.custom {
			for _, match := range cp.pattern.FindAllString(line, -1) {
				record(CategorySecret, match, fmt.Sprintf("[CUSTOM:%s]***", cp.name), lineNum)
			}
		}
	}
	return findings
}

// findMatches returns the sensitive text for every match of p in line.
// Key/value detectors carry the secret in their final capture group; for
// those only the value is reported, so the key name stays readable after
// masking. Single-group and plain patterns report the whole match.
func findMatches(p *regexp.Regexp, line string) []string {
	if p.NumSubexp() < 2 {
		return p.FindAllString(line, -1)
	}

	var matches []string
	for _, groups := range p.FindAllStringSubmatch(line, -1) {
		if value := groups[p.NumSubexp()]; value != "" {
			matches = append(matches, value)
		}
	}
	return matches
}

// Apply detects sensitive content and returns the masked text along with the
// findings. Replacement is literal and longest-match-first, so masking a long
// match cannot be corrupted by a shorter match nested inside it.
func (f *Filter) Apply(content, filename string) (string, []Finding) {
	findings := f.Detect(content, filename)
	if len(findings) == 0 {
		return content, nil
	}

	ordered := make([]Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Original) > len(ordered[j].Original)
	})

	masked := content
	for _, finding := range ordered {
		masked = strings.ReplaceAll(masked, finding.Original, finding.Masked)
	}
	return masked, findings
}
