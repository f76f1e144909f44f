package secrets

import (
	"regexp"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// newGitleaksDetector builds a Gitleaks detector against its built-in
// ruleset (800+ patterns for cloud, VCS, and SaaS credentials), merging in
// allowlist if non-nil. Constructed once per scrubber rather than per
// Scrub call, since loading the default ruleset isn't free.
func newGitleaksDetector(allowlist *Allowlist) (*detect.Detector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	if allowlist != nil {
		applyAllowlist(&d.Config, allowlist)
	}
	return d, nil
}

// applyAllowlist merges allowlist into cfg as a global allowlist entry.
func applyAllowlist(cfg *gitleaksconfig.Config, allowlist *Allowlist) {
	entry := &gitleaksconfig.Allowlist{Description: "taskd project/user allowlist"}

	for _, pattern := range allowlist.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// LoadAllowlists already validated every pattern; a failure here
			// means that validation was bypassed.
			panic("secrets: pre-validated allowlist path pattern failed to compile: " + pattern)
		}
		entry.Paths = append(entry.Paths, (*gitleaksregexp.Regexp)(re))
	}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("secrets: pre-validated allowlist content pattern failed to compile: " + pattern)
		}
		entry.Regexes = append(entry.Regexes, (*gitleaksregexp.Regexp)(re))
	}
	entry.StopWords = append(entry.StopWords, allowlist.Regexes...)

	cfg.Allowlists = append(cfg.Allowlists, entry)
}

// detectGitleaks scans content with detector and converts its line/column
// findings into taskd's byte-offset Finding shape.
func detectGitleaks(detector *detect.Detector, content string) []Finding {
	offsets := lineByteOffsets(content)

	raw := detector.DetectString(content)
	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if f.StartLine < 1 || f.StartLine > len(offsets) {
			continue
		}
		start := offsets[f.StartLine-1] + f.StartColumn
		end := start + (f.EndColumn - f.StartColumn)
		findings = append(findings, Finding{
			RuleID:      "gitleaks:" + f.RuleID,
			Description: f.Description,
			Severity:    "high",
			StartIndex:  start,
			EndIndex:    end,
			Line:        f.StartLine,
		})
	}
	return findings
}

// lineByteOffsets returns, for each 0-indexed line i, the byte offset in
// content where that line begins.
func lineByteOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
