// Package scanner implements the deterministic scan chain that runs at every
// trust boundary: credential, sensitive-path, command-pattern,
// vulnerability-echo, and encoding-normalisation detectors.
package scanner

import (
	"regexp"
	"strings"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

// CredentialPattern is one named regex entry in a policy document's
// credential_patterns section.
type CredentialPattern struct {
	Name    string
	Pattern string
}

// uriPatternNames are eligible for example-URI suppression. API keys, PATs,
// JWTs, and private-key markers are never allowlisted.
var uriPatternNames = map[string]bool{
	"mongodb_uri": true,
	"postgres_uri": true,
	"redis_uri": true,
}

// exampleURIHosts mark a URI as a placeholder rather than a live credential.
var exampleURIHosts = []string{
	"localhost", "127.0.0.1", "0.0.0.0", "::1",
	"example.com", "example.org", "example.net",
	"user:pass@", "user:password@", "username:password@",
	"your-password", "<password>", "changeme",
	"//db:", "//redis:", "//postgres:", "//mysql:", "//mongo:",
	"//rabbitmq:", "//memcached:",
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

// CredentialScanner detects API keys, tokens, and connection-string secrets.
type CredentialScanner struct {
	patterns []compiledPattern
}

// NewCredentialScanner compiles every entry. Returns an error (instead of
// panicking) if any pattern fails to compile, so the policy loader can reject
// a bad document at startup per spec.md §6.
func NewCredentialScanner(patterns []CredentialPattern) (*CredentialScanner, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{name: p.Name, re: re})
	}
	return &CredentialScanner{patterns: compiled}, nil
}

func (s *CredentialScanner) Scan(text string) valueobject.ScanResult {
	var matches []valueobject.ScanMatch
	for _, p := range s.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			matchedText := text[loc[0]:loc[1]]
			if uriPatternNames[p.name] && containsAny(matchedText, exampleURIHosts) {
				continue
			}
			matches = append(matches, valueobject.ScanMatch{
				PatternName: p.name,
				MatchedText: matchedText,
				Position:    loc[0],
			})
		}
	}
	return valueobject.ScanResult{Found: len(matches) > 0, Matches: matches, ScannerName: "credential_scanner"}
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
