package scanner

import (
	"regexp"
	"strings"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

var (
	shellPrefixRe  = regexp.MustCompile(`(?i)^\s*(?:\$|#|sudo|cat|rm|chmod|chown|ls|cp|mv|mkdir|touch|head|tail|less|more|nano|vi|vim)\s`)
	fencedBlockRe  = regexp.MustCompile(`(?s)` + "```" + `[^\n]*\n(.*?)` + "```")
	bulletLineRe   = regexp.MustCompile(`^\s*[-*]\s+`)
	prosaicAfterRe = regexp.MustCompile(`^[—–\-:]\s+\w`)
	yamlKeyLineRe  = regexp.MustCompile(`^\s+\w[\w_-]*\s*:`)
)

// SensitivePathScanner detects references to sensitive filesystem paths. It
// runs in strict mode (Scan, substring match) against user input and in
// context-aware mode (ScanOutput) against worker output, where bare prose
// mentions are allowed to pass but operational emissions are flagged.
type SensitivePathScanner struct {
	patterns []string
}

func NewSensitivePathScanner(patterns []string) *SensitivePathScanner {
	return &SensitivePathScanner{patterns: patterns}
}

// Scan is the strict substring scan used on user input.
func (s *SensitivePathScanner) Scan(text string) valueobject.ScanResult {
	var matches []valueobject.ScanMatch
	for _, pattern := range s.patterns {
		for _, pos := range findAllSubstr(text, pattern) {
			matches = append(matches, valueobject.ScanMatch{
				PatternName: "sensitive_path",
				MatchedText: pattern,
				Position:    pos,
			})
		}
	}
	return valueobject.ScanResult{Found: len(matches) > 0, Matches: matches, ScannerName: "sensitive_path_scanner"}
}

// ScanOutput is the context-aware scan used on worker output. A match is
// reported only inside fenced code, on a shell-prefixed line, or on a
// standalone path-only line; bulleted prose, trailing explanatory text, and
// indented YAML key lines are treated as educational and skipped.
func (s *SensitivePathScanner) ScanOutput(text string) valueobject.ScanResult {
	var matches []valueobject.ScanMatch

	type span struct{ start, end int }
	var codeBlocks []span
	for _, loc := range fencedBlockRe.FindAllStringSubmatchIndex(text, -1) {
		codeBlocks = append(codeBlocks, span{start: loc[2], end: loc[3]})
	}
	inCodeBlock := func(pos int) bool {
		for _, b := range codeBlocks {
			if pos >= b.start && pos < b.end {
				return true
			}
		}
		return false
	}

	for _, pattern := range s.patterns {
		for _, pos := range findAllSubstr(text, pattern) {
			if inCodeBlock(pos) {
				matches = append(matches, valueobject.ScanMatch{PatternName: "sensitive_path", MatchedText: pattern, Position: pos})
				continue
			}

			lineStart := strings.LastIndex(text[:pos], "\n") + 1
			lineEndRel := strings.Index(text[pos:], "\n")
			var lineEnd int
			if lineEndRel == -1 {
				lineEnd = len(text)
			} else {
				lineEnd = pos + lineEndRel
			}
			line := text[lineStart:lineEnd]

			if shellPrefixRe.MatchString(line) {
				matches = append(matches, valueobject.ScanMatch{PatternName: "sensitive_path", MatchedText: pattern, Position: pos})
				continue
			}

			stripped := strings.TrimSpace(line)
			if stripped == pattern || stripped == strings.TrimRight(pattern, "/") {
				matches = append(matches, valueobject.ScanMatch{PatternName: "sensitive_path", MatchedText: pattern, Position: pos})
				continue
			}

			if bulletLineRe.MatchString(line) && len(stripped) > len(pattern)+5 {
				continue
			}

			pathEnd := pos + len(pattern) - lineStart
			var afterPath string
			if pathEnd < len(stripped) {
				afterPath = strings.TrimSpace(stripped[pathEnd:])
			}
			if afterPath != "" && prosaicAfterRe.MatchString(afterPath) {
				continue
			}

			if yamlKeyLineRe.MatchString(line) {
				continue
			}

			// Otherwise: prose context — skip (educational).
		}
	}

	return valueobject.ScanResult{Found: len(matches) > 0, Matches: matches, ScannerName: "sensitive_path_scanner"}
}

// findAllSubstr returns every (possibly overlapping by one) start position of
// pattern in text, matching Python's find-then-advance-by-1 scan loop.
func findAllSubstr(text, pattern string) []int {
	if pattern == "" {
		return nil
	}
	var positions []int
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		abs := idx + pos
		positions = append(positions, abs)
		idx = abs + 1
		if idx > len(text) {
			break
		}
	}
	return positions
}
