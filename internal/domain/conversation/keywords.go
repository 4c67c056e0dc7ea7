package conversation

import (
	"regexp"
	"strings"
)

// capabilityTier orders the escalation ladder observe < read < write <
// execute < exfiltrate < persist. Keyword sets are checked from the
// highest tier down so that a message mentioning several tiers is
// classified by its most capable one.
type capabilityTier int

const (
	tierNone       capabilityTier = -1
	tierObserve    capabilityTier = 0
	tierRead       capabilityTier = 1
	tierWrite      capabilityTier = 2
	tierExecute    capabilityTier = 3
	tierExfiltrate capabilityTier = 4
	tierPersist    capabilityTier = 5
)

var tierKeywords = []struct {
	tier     capabilityTier
	keywords []string
}{
	{tierPersist, []string{"crontab", "cron job", "cron entry", "systemd", "autostart", "startup script", "persist", "backdoor", "schedule a task", "add a service"}},
	{tierExfiltrate, []string{"curl the data", "upload", "exfiltrate", "post to", "send to my server", "transmit", "scp ", "ftp ", "to my server"}},
	{tierExecute, []string{"execute", "run the", "run this", "bash", "shell", "pytest", "test suite", "build command", "command for me", "script"}},
	{tierWrite, []string{"write a", "write an", "save", "create a file", "update the", "modify", "edit the"}},
	{tierRead, []string{"read the", "read a", "cat ", "open the", "contents of", "file contents", "config file"}},
	{tierObserve, []string{"list ", "show me", "look at", "display", "view the", "running processes", "process list", "directory", "what's in", "file list"}},
}

func classifyTier(text string) capabilityTier {
	lower := strings.ToLower(text)
	for _, tk := range tierKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.tier
			}
		}
	}
	return tierNone
}

var sensitiveTopicKeywords = []string{
	"password", "api_key", "api key", "credential", "shadow",
	"secret", "token", "private key", "ssh key", "access key",
}

func sensitiveKeywordsIn(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range sensitiveTopicKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

var instructionOverridePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|your\s+|previous\s+|the\s+)*(previous\s+|prior\s+)?instructions`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+|your\s+)*safety`),
	regexp.MustCompile(`(?i)from now on`),
	regexp.MustCompile(`(?i)\bdan\b|do anything now`),
	regexp.MustCompile(`(?i)developer mode`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)forget\s+(all\s+|your\s+)*instructions`),
	regexp.MustCompile(`(?i)bypass\s+(safety|limits|restrictions|rules)`),
}

var contextReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as (i|we) (mentioned|discussed)`),
	regexp.MustCompile(`(?i)as mentioned`),
	regexp.MustCompile(`(?i)you said earlier`),
	regexp.MustCompile(`(?i)based on our (earlier |previous )?discussion`),
	regexp.MustCompile(`(?i)earlier discussion`),
}

var escalationLanguagePhrases = []string{
	"the real task", "the important part", "actual goal", "true purpose",
}

func hasContextReference(text string) bool {
	for _, re := range contextReferencePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func hasEscalationLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range escalationLanguagePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var reconnaissancePatterns = []string{
	"list files", "list the files", "show me the contents", "show me directory",
	"show me the directory", "directory", "enumerate", "what's in", "contents of",
}

func isReconnaissancePattern(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range reconnaissancePatterns {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var textCodeKeywords = []string{
	"poem", "translate", "summarize", "explain", "function", "refactor",
	"debug", "algorithm", "decorator", "context manager", "generator",
	"asyncio", "python", "sort a list", "type hints",
}

var systemFocusedKeywords = []string{
	"execute", "bash", "shell", "command", "run the", "run another",
	"config file", "process list", "test suite", "build command",
	"contents of the config",
}

func isTextCodeFocused(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range textCodeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isSystemFocused(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range systemFocusedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
