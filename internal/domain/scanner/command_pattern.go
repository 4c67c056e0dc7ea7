package scanner

import (
	"regexp"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

var defaultCommandPatterns = []compiledPattern{
	{name: "pipe_to_shell", re: regexp.MustCompile(`(?i)(curl|wget)\s+[^|]+\|\s*(ba)?sh`)},
	{name: "reverse_shell_tcp", re: regexp.MustCompile(`(?i)/dev/tcp/`)},
	{name: "reverse_shell_bash", re: regexp.MustCompile(`(?i)bash\s+-i\s+>&`)},
	{name: "netcat_shell", re: regexp.MustCompile(`(?i)(nc|ncat|netcat)\s+.*(-e\s+|exec\s+)`)},
	{name: "base64_exec", re: regexp.MustCompile(`(?i)base64\s+(-d|--decode)\s*\|`)},
	{name: "encoded_payload", re: regexp.MustCompile(`[A-Za-z0-9+/]{100,}={0,2}`)},
	{name: "nohup_background", re: regexp.MustCompile(`(?i)nohup\s+\S+`)},
	{name: "chmod_setuid", re: regexp.MustCompile(`(?i)chmod\s+[ugo]*\+[rwx]*s|chmod\s+[2467]\d{3}\s+`)},
	{name: "chmod_world_writable", re: regexp.MustCompile(`(?i)chmod\s+(777|666|o\+w)\s+`)},
	{name: "cron_injection", re: regexp.MustCompile(`(?i)(crontab|/etc/cron)`)},
	{name: "eval_exec_shell", re: regexp.MustCompile(`(?i)\b(eval|exec)\s+["']?(\$\(|` + "`" + `|bash|sh\s)`)},
	{name: "download_execute", re: regexp.MustCompile(`(?i)(curl|wget)\s+.*-[oO]\s*\S+.*&&.*(\./|bash|sh|chmod)`)},
	{name: "scripting_reverse_shell", re: regexp.MustCompile(`(?is)(python|perl|ruby).*socket.*connect.*(?:subprocess|os\.system|os\.popen|pty\.spawn|exec\()`)},
	{name: "mkfifo_shell", re: regexp.MustCompile(`(?i)mkfifo\s+.*(nc|ncat|netcat|bash)`)},
}

// CommandPatternScanner detects dangerous shell/command patterns that may
// appear in worker prose or generated code: pipe-to-shell, reverse shells,
// base64 decode+exec, netcat listeners, nohup, chmod +s/777, cron injection,
// and conservative scripting reverse-shell detection (requires both a socket
// connect and a shell invocation to avoid flagging benign networking code).
type CommandPatternScanner struct {
	patterns []compiledPattern
}

func NewCommandPatternScanner(extra []CredentialPattern) (*CommandPatternScanner, error) {
	patterns := make([]compiledPattern, len(defaultCommandPatterns))
	copy(patterns, defaultCommandPatterns)
	for _, p := range extra {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, compiledPattern{name: p.Name, re: re})
	}
	return &CommandPatternScanner{patterns: patterns}, nil
}

func (s *CommandPatternScanner) Scan(text string) valueobject.ScanResult {
	var matches []valueobject.ScanMatch
	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, valueobject.ScanMatch{
				PatternName: p.name,
				MatchedText: text[loc[0]:loc[1]],
				Position:    loc[0],
			})
		}
	}
	return valueobject.ScanResult{Found: len(matches) > 0, Matches: matches, ScannerName: "command_pattern_scanner"}
}
