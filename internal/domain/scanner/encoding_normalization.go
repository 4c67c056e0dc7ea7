package scanner

import (
	"encoding/base64"
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

var (
	base64CandidateRe = regexp.MustCompile(`[A-Za-z0-9+/]{16,}={0,2}`)
	hexCandidateRe     = regexp.MustCompile(`[0-9a-fA-F]{16,}`)
	urlEncodedRe       = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	htmlEntityRe       = regexp.MustCompile(`(?i)&#\d+;|&#x[0-9a-fA-F]+;|&[a-z]+;`)
	charSplitRe        = regexp.MustCompile(`(?:^|\s)((?:\S ){3,}\S)(?:\s|$)`)
)

const minPrintable = 4

// EncodingNormalizationScanner decodes common encodings (base64, hex, URL,
// ROT13, HTML entities, char-splitting) and re-scans each decoded variant
// through the credential, sensitive-path, and command-pattern scanners.
// Matches found in a decoded variant are reported with a
// "encoded:<scheme>:<inner_pattern>" name to aid triage.
type EncodingNormalizationScanner struct {
	cred *CredentialScanner
	path *SensitivePathScanner
	cmd  *CommandPatternScanner
}

func NewEncodingNormalizationScanner(cred *CredentialScanner, path *SensitivePathScanner, cmd *CommandPatternScanner) *EncodingNormalizationScanner {
	return &EncodingNormalizationScanner{cred: cred, path: path, cmd: cmd}
}

func (s *EncodingNormalizationScanner) Scan(text string) valueobject.ScanResult {
	return s.scanInternal(text, false)
}

func (s *EncodingNormalizationScanner) ScanOutput(text string) valueobject.ScanResult {
	return s.scanInternal(text, true)
}

type decodedVariant struct {
	encoding string
	text     string
}

func (s *EncodingNormalizationScanner) scanInternal(text string, outputMode bool) valueobject.ScanResult {
	variants := s.decodeAll(text)
	if len(variants) == 0 {
		return valueobject.ScanResult{ScannerName: "encoding_normalization_scanner"}
	}

	var allMatches []valueobject.ScanMatch
	for _, v := range variants {
		credResult := s.cred.Scan(v.text)
		var pathResult valueobject.ScanResult
		if outputMode {
			pathResult = s.path.ScanOutput(v.text)
		} else {
			pathResult = s.path.Scan(v.text)
		}
		cmdResult := s.cmd.Scan(v.text)

		for _, inner := range []valueobject.ScanResult{credResult, pathResult, cmdResult} {
			for _, m := range inner.Matches {
				allMatches = append(allMatches, valueobject.ScanMatch{
					PatternName: "encoded:" + v.encoding + ":" + m.PatternName,
					MatchedText: m.MatchedText,
					Position:    m.Position,
				})
			}
		}
	}

	return valueobject.ScanResult{Found: len(allMatches) > 0, Matches: allMatches, ScannerName: "encoding_normalization_scanner"}
}

func (s *EncodingNormalizationScanner) decodeAll(text string) []decodedVariant {
	var results []decodedVariant

	for _, d := range s.tryBase64(text) {
		results = append(results, decodedVariant{"base64", d})
	}
	for _, d := range s.tryHex(text) {
		results = append(results, decodedVariant{"hex", d})
	}
	if urlDecoded, ok := s.tryURLDecode(text); ok {
		results = append(results, decodedVariant{"url_encoding", urlDecoded})
	}
	results = append(results, decodedVariant{"rot13", rot13(text)})
	if htmlDecoded, ok := s.tryHTMLEntities(text); ok {
		results = append(results, decodedVariant{"html_entities", htmlDecoded})
	}
	if charDecoded := s.tryCharSplitting(text); charDecoded != text {
		results = append(results, decodedVariant{"char_splitting", charDecoded})
	}

	return results
}

func isValidDecoded(text string) bool {
	count := 0
	for _, r := range text {
		if unicode.IsPrint(r) {
			count++
		}
	}
	return count >= minPrintable
}

func (s *EncodingNormalizationScanner) tryBase64(text string) []string {
	var results []string
	for _, candidate := range base64CandidateRe.FindAllString(text, -1) {
		decoded, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if !isUTF8(decoded) {
			continue
		}
		decodedStr := string(decoded)
		if isValidDecoded(decodedStr) {
			results = append(results, decodedStr)
		}
	}
	return results
}

func (s *EncodingNormalizationScanner) tryHex(text string) []string {
	var results []string
	for _, candidate := range hexCandidateRe.FindAllString(text, -1) {
		if len(candidate)%2 != 0 {
			continue
		}
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if !isUTF8(decoded) {
			continue
		}
		decodedStr := string(decoded)
		if isValidDecoded(decodedStr) {
			results = append(results, decodedStr)
		}
	}
	return results
}

func (s *EncodingNormalizationScanner) tryURLDecode(text string) (string, bool) {
	if !urlEncodedRe.MatchString(text) {
		return "", false
	}
	decoded, err := url.QueryUnescape(text)
	if err != nil || decoded == text {
		return "", false
	}
	return decoded, true
}

func (s *EncodingNormalizationScanner) tryHTMLEntities(text string) (string, bool) {
	if !htmlEntityRe.MatchString(text) {
		return "", false
	}
	decoded := html.UnescapeString(text)
	if decoded == text {
		return "", false
	}
	return decoded, true
}

// tryCharSplitting collapses runs of 4+ single characters separated by
// spaces (e.g. "c a t" -> "cat"), a common obfuscation against regex
// scanners.
func (s *EncodingNormalizationScanner) tryCharSplitting(text string) string {
	locs := charSplitRe.FindAllStringSubmatchIndex(text, -1)
	if locs == nil {
		return strings.TrimSpace(text)
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		matchStart, matchEnd := loc[0], loc[1]
		segStart, segEnd := loc[2], loc[3]
		segment := text[segStart:segEnd]
		chars := strings.Split(segment, " ")
		allSingle := true
		for _, c := range chars {
			if len([]rune(c)) != 1 {
				allSingle = false
				break
			}
		}
		b.WriteString(text[last:matchStart])
		if allSingle {
			b.WriteString(" " + strings.Join(chars, "") + " ")
		} else {
			b.WriteString(text[matchStart:matchEnd])
		}
		last = matchEnd
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

func rot13(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, text)
}

func isUTF8(b []byte) bool {
	return utf8.Valid(b)
}
