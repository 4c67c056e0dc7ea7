package scanner

import (
	"regexp"
	"sort"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

var vulnerabilityFingerprints = []compiledPattern{
	{name: "python_eval", re: regexp.MustCompile(`\beval\s*\(`)},
	{name: "python_exec", re: regexp.MustCompile(`\bexec\s*\(`)},
	{name: "python_os_system", re: regexp.MustCompile(`\bos\.system\s*\(`)},
	{name: "python_os_popen", re: regexp.MustCompile(`\bos\.popen\s*\(`)},
	{name: "python_subprocess_shell", re: regexp.MustCompile(`(?s)\bsubprocess\.call\(.*shell\s*=\s*True`)},
	{name: "python_pickle", re: regexp.MustCompile(`\bpickle\.loads?\s*\(`)},
	// The original's (?!Loader) lookahead is a zero-width no-op here — it
	// does not actually exclude "Loader" appearing anywhere in the call.
	// Ported faithfully without the inert lookahead (RE2 cannot express it
	// anyway); see DESIGN.md.
	{name: "python_yaml_unsafe", re: regexp.MustCompile(`\byaml\.load\s*\([^)]*`)},
	{name: "python_import", re: regexp.MustCompile(`__import__\s*\(`)},
	{name: "js_child_process", re: regexp.MustCompile(`\bchild_process\.exec\s*\(`)},
	{name: "js_innerhtml", re: regexp.MustCompile(`\.innerHTML\s*=`)},
	{name: "sql_injection", re: regexp.MustCompile(`(?i)['"]?\s*(?:OR|AND)\s+\d+\s*=\s*\d+`)},
	{name: "sql_union", re: regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`)},
	{name: "sql_drop", re: regexp.MustCompile(`(?i);\s*DROP\s+TABLE\b`)},
	{name: "deserialization", re: regexp.MustCompile(`\bdeserialize\s*\(`)},
}

var (
	echoCodeBlockRe   = regexp.MustCompile(`(?s)` + "```" + `[^\n]*\n(.*?)` + "```")
	echoIndentedLineRe = regexp.MustCompile(`(?m)^(?:    |\t).+`)
)

// VulnerabilityEchoScanner flags the worker reproducing a vulnerable pattern
// present in the user's input, restricted to the output's code regions so
// prose mentions never trigger it.
type VulnerabilityEchoScanner struct{}

func NewVulnerabilityEchoScanner() *VulnerabilityEchoScanner {
	return &VulnerabilityEchoScanner{}
}

func (s *VulnerabilityEchoScanner) extractCodeRegions(text string) string {
	var out string
	for _, m := range echoCodeBlockRe.FindAllStringSubmatch(text, -1) {
		out += m[1] + "\n"
	}
	for _, m := range echoIndentedLineRe.FindAllString(text, -1) {
		out += m + "\n"
	}
	return out
}

func (s *VulnerabilityEchoScanner) findFingerprints(text string) map[string]bool {
	found := make(map[string]bool)
	for _, fp := range vulnerabilityFingerprints {
		if fp.re.MatchString(text) {
			found[fp.name] = true
		}
	}
	return found
}

func (s *VulnerabilityEchoScanner) Scan(inputText, outputText string) valueobject.ScanResult {
	inputFPs := s.findFingerprints(inputText)
	if len(inputFPs) == 0 {
		return valueobject.ScanResult{ScannerName: "vulnerability_echo_scanner"}
	}

	outputCode := s.extractCodeRegions(outputText)
	outputFPs := s.findFingerprints(outputCode)

	var echoed []string
	for fp := range inputFPs {
		if outputFPs[fp] {
			echoed = append(echoed, fp)
		}
	}
	if len(echoed) == 0 {
		return valueobject.ScanResult{ScannerName: "vulnerability_echo_scanner"}
	}
	sort.Strings(echoed)

	matches := make([]valueobject.ScanMatch, 0, len(echoed))
	for _, fp := range echoed {
		matches = append(matches, valueobject.ScanMatch{PatternName: "vuln_echo:" + fp, MatchedText: fp})
	}
	return valueobject.ScanResult{Found: true, Matches: matches, ScannerName: "vulnerability_echo_scanner"}
}
