package policy

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

// Engine validates file and command operations against a compiled Document.
// Constructed once at startup (or reconstructed wholesale on policy reload —
// see infrastructure/policyfile for the fsnotify-driven hot reload).
type Engine struct {
	doc             Document
	workspacePath   string
	pathConstrained map[string]bool
	allowedCommands map[string]bool
	blockedPatterns []string
	injectionPatterns []*regexp.Regexp
}

// injectionPatterns are structural, not policy-driven — every command is
// checked against them regardless of the policy document's own rules. The
// original Python implementation expresses the "bare pipe, not ||" rule with
// a negative lookaround ((?<!\|)\|(?!\|)) that Go's RE2 engine cannot
// compile; checkBarePipe below reimplements it with a manual rune scan.
var structuralInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\(`),
	regexp.MustCompile("`"),
	regexp.MustCompile(`;\s*`),
	regexp.MustCompile(`&&`),
	regexp.MustCompile(`\|\|`),
}

func NewEngine(doc Document, workspacePath string) (*Engine, error) {
	if workspacePath == "" {
		workspacePath = "/workspace"
	}

	e := &Engine{
		doc:             doc,
		workspacePath:   workspacePath,
		pathConstrained: toSet(doc.Commands.PathConstrained),
		allowedCommands: toSet(doc.Commands.Allowed),
		blockedPatterns: doc.Commands.BlockedPatterns,
		injectionPatterns: structuralInjectionPatterns,
	}
	return e, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// ── Path normalisation ──────────────────────────────────────────

func urlDecodeIterative(s string) string {
	previous := ""
	current := s
	for i := 0; i < 10; i++ {
		if current == previous {
			break
		}
		previous = current
		if decoded, err := url.QueryUnescape(current); err == nil {
			current = decoded
		} else {
			break
		}
	}
	return current
}

func stripNullBytes(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "%00", "")
	return s
}

func (e *Engine) normalisePath(p string, resolve bool) string {
	decoded := urlDecodeIterative(p)
	cleaned := stripNullBytes(decoded)
	lexical := path.Clean(cleaned)
	if !path.IsAbs(lexical) {
		lexical = path.Join("/", lexical)
	}
	if !resolve {
		return lexical
	}
	if real, err := filepath.EvalSymlinks(cleaned); err == nil {
		return real
	}
	return lexical
}

func (e *Engine) detectTraversal(rawPath string) bool {
	decoded := urlDecodeIterative(rawPath)
	cleaned := stripNullBytes(decoded)

	if strings.Contains(cleaned, "..") {
		return true
	}
	if strings.Contains(rawPath, "\x00") || strings.Contains(rawPath, "%00") {
		return true
	}

	lower := strings.ToLower(rawPath)
	if strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e") {
		return true
	}

	return false
}

// ── File access checks ──────────────────────────────────────────

func (e *Engine) matchesAnyGlob(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if pyFnmatch(p, pattern) {
			return true
		}
		if strings.HasSuffix(pattern, "/**") {
			dirPattern := strings.TrimRight(pattern[:len(pattern)-3], "/")
			if strings.TrimRight(p, "/") == dirPattern {
				return true
			}
		}

		basename := path.Base(p)
		if strings.HasPrefix(pattern, "**") {
			suffixPattern := strings.TrimLeft(pattern, "*")
			suffixPattern = strings.TrimPrefix(suffixPattern, "/")

			parts := splitPath(p)
			for i := range parts {
				subpath := strings.Join(parts[i:], "/")
				if pyFnmatch(subpath, suffixPattern) {
					return true
				}
			}
			if pyFnmatch(basename, suffixPattern) {
				return true
			}
		}
	}
	return false
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (e *Engine) CheckFileWrite(p string) valueobject.ValidationResult {
	return e.checkFileAccess(p, e.doc.FileAccess.WriteAllowed, "write_allowed")
}

func (e *Engine) CheckFileRead(p string) valueobject.ValidationResult {
	return e.checkFileAccess(p, e.doc.FileAccess.ReadAllowed, "read_allowed")
}

func (e *Engine) checkFileAccess(p string, allowed []string, allowListName string) valueobject.ValidationResult {
	if e.detectTraversal(p) {
		return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: p, Reason: "Path traversal detected"}
	}

	resolved := e.normalisePath(p, true)

	if e.matchesAnyGlob(resolved, e.doc.FileAccess.Blocked) {
		return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: p, ResolvedPath: resolved, Reason: "Path matches blocked pattern"}
	}

	if e.matchesAnyGlob(resolved, allowed) {
		return valueobject.ValidationResult{Status: valueobject.PolicyAllowed, Path: p, ResolvedPath: resolved}
	}

	return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: p, ResolvedPath: resolved, Reason: "Path not in " + allowListName + " list"}
}

// ── Command checks ──────────────────────────────────────────────

// checkBarePipe replaces the Python lookaround "(?<!\|)\|(?!\|)": true if the
// string contains a '|' that is not immediately adjacent (before or after)
// to another '|', i.e. a bare pipe as opposed to part of "||".
func checkBarePipe(s string) bool {
	runes := []rune(s)
	for i, r := range runes {
		if r != '|' {
			continue
		}
		prevIsPipe := i > 0 && runes[i-1] == '|'
		nextIsPipe := i+1 < len(runes) && runes[i+1] == '|'
		if !prevIsPipe && !nextIsPipe {
			return true
		}
	}
	return false
}

func (e *Engine) extractBaseCommand(command string) string {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return ""
	}
	if len(parts) >= 2 {
		twoWord := parts[0] + " " + parts[1]
		if e.allowedCommands[twoWord] {
			return twoWord
		}
	}
	return parts[0]
}

func (e *Engine) extractCommandArgs(command, baseCommand string) []string {
	trimmed := strings.TrimSpace(command)
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, baseCommand))
	if rest == "" {
		return nil
	}
	return strings.Fields(rest)
}

func (e *Engine) CheckCommand(command string) valueobject.ValidationResult {
	stripped := strings.TrimSpace(command)
	if stripped == "" {
		return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Reason: "Empty command"}
	}

	for _, re := range e.injectionPatterns {
		if re.MatchString(stripped) {
			return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: stripped, Reason: "Injection pattern detected: " + re.String()}
		}
	}
	if checkBarePipe(stripped) {
		return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: stripped, Reason: "Injection pattern detected: bare pipe"}
	}

	for _, blocked := range e.blockedPatterns {
		if strings.Contains(stripped, blocked) {
			return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: stripped, Reason: "Matches blocked pattern: " + blocked}
		}
	}

	base := e.extractBaseCommand(stripped)
	if !e.allowedCommands[base] {
		return valueobject.ValidationResult{Status: valueobject.PolicyBlocked, Path: stripped, Reason: "Command not in allowed list: " + base}
	}

	if e.pathConstrained[base] {
		args := e.extractCommandArgs(stripped, base)
		var pathArgs []string
		for _, a := range args {
			if strings.HasPrefix(a, "-") || strings.HasPrefix(a, "'") || strings.HasPrefix(a, `"`) {
				continue
			}
			if strings.ContainsAny(a, "*?[") {
				continue
			}
			if strings.HasPrefix(a, "/") {
				pathArgs = append(pathArgs, a)
			} else {
				pathArgs = append(pathArgs, filepath.Clean(filepath.Join(e.workspacePath, a)))
			}
		}
		for _, pathArg := range pathArgs {
			result := e.CheckFileRead(pathArg)
			if result.Status == valueobject.PolicyBlocked {
				return valueobject.ValidationResult{
					Status: valueobject.PolicyBlocked,
					Path:   stripped,
					Reason: "Path-constrained command '" + base + "' used with blocked path: " + pathArg,
				}
			}
		}
	}

	return valueobject.ValidationResult{Status: valueobject.PolicyAllowed, Path: stripped}
}
