// Package policy implements path containment, traversal detection, and
// command allowlisting against a structured policy document.
package policy

// Document is the structured configuration declaring file-access and
// command rules. Patterns are raw glob/regex text; the engine compiles them
// at construction and the document is rejected if any entry fails to
// compile.
type Document struct {
	FileAccess FileAccessRules `yaml:"file_access"`
	Commands   CommandRules    `yaml:"commands"`

	CredentialPatterns     []PatternEntry `yaml:"credential_patterns"`
	SensitivePathPatterns  []string       `yaml:"sensitive_path_patterns"`
}

type FileAccessRules struct {
	ReadAllowed  []string `yaml:"read_allowed"`
	WriteAllowed []string `yaml:"write_allowed"`
	Blocked      []string `yaml:"blocked"`
}

type CommandRules struct {
	Allowed         []string `yaml:"allowed"`
	PathConstrained []string `yaml:"path_constrained"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

type PatternEntry struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}
