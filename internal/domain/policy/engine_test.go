package policy

import (
	"testing"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

func testDocument() Document {
	return Document{
		FileAccess: FileAccessRules{
			ReadAllowed:  []string{"/workspace/**", "/tmp/*.log"},
			WriteAllowed: []string{"/workspace/**"},
			Blocked:      []string{"**/*.env", "**/.ssh/**", "/etc/**"},
		},
		Commands: CommandRules{
			Allowed:         []string{"ls", "cat", "git status", "podman build"},
			PathConstrained: []string{"cat"},
			BlockedPatterns: []string{"rm -rf /"},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testDocument(), "/workspace")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestCheckFileRead_AllowsWorkspacePath(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/project/main.go")
	if !result.Allowed() {
		t.Fatalf("expected allowed, got %+v", result)
	}
}

func TestCheckFileRead_BlocksDotEnvAnyDepth(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/project/deeply/nested/.env")
	if result.Allowed() {
		t.Fatalf("expected .env to be blocked, got %+v", result)
	}
}

func TestCheckFileRead_BlocksSSHDirAnyDepth(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/.ssh/id_rsa")
	if result.Allowed() {
		t.Fatalf("expected .ssh contents to be blocked, got %+v", result)
	}
}

func TestCheckFileRead_BlocksTraversal(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/../etc/passwd")
	if result.Allowed() {
		t.Fatal("expected traversal to be blocked")
	}
	if result.Reason != "Path traversal detected" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
}

func TestCheckFileRead_BlocksEncodedTraversal(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/%2e%2e/etc/passwd")
	if result.Allowed() {
		t.Fatal("expected encoded traversal to be blocked")
	}
}

func TestCheckFileRead_BlocksDoubleEncodedTraversal(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/workspace/%252e%252e/etc/passwd")
	if result.Allowed() {
		t.Fatal("expected double-encoded traversal to be blocked")
	}
}

func TestCheckFileRead_NotInAllowList(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckFileRead("/home/other/secret.txt")
	if result.Allowed() {
		t.Fatal("expected path outside allow list to be blocked")
	}
}

func TestCheckCommand_AllowsSimpleCommand(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls -la")
	if result.Status != valueobject.PolicyAllowed {
		t.Fatalf("expected allowed, got %+v", result)
	}
}

func TestCheckCommand_AllowsTwoWordCommand(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("git status")
	if result.Status != valueobject.PolicyAllowed {
		t.Fatalf("expected allowed, got %+v", result)
	}
}

func TestCheckCommand_BlocksUnlistedCommand(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("curl http://evil.example")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected unlisted command to be blocked")
	}
}

func TestCheckCommand_BlocksCommandSubstitution(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls $(whoami)")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected command substitution to be blocked")
	}
}

func TestCheckCommand_BlocksBacktick(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls `whoami`")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected backtick substitution to be blocked")
	}
}

func TestCheckCommand_BlocksChaining(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls && rm -rf /")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected && chaining to be blocked")
	}
}

func TestCheckCommand_BlocksSemicolon(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls; whoami")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected semicolon chaining to be blocked")
	}
}

func TestCheckCommand_BlocksBarePipe(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("ls | sh")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected bare pipe to be blocked")
	}
}

func TestCheckCommand_AllowsDoublePipeIsStillStructural(t *testing.T) {
	// "||" is itself a blocked structural pattern (logical-or chaining),
	// not exempted by the bare-pipe carve-out.
	e := newTestEngine(t)
	result := e.CheckCommand("ls || whoami")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected || chaining to be blocked")
	}
}

func TestCheckCommand_BlocksBlockedPattern(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("rm -rf /")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected declared blocked pattern to be blocked")
	}
}

func TestCheckCommand_PathConstrainedAllowsWorkspacePath(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("cat /workspace/project/README.md")
	if result.Status != valueobject.PolicyAllowed {
		t.Fatalf("expected allowed, got %+v", result)
	}
}

func TestCheckCommand_PathConstrainedBlocksOutsidePath(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("cat /etc/passwd")
	if result.Status != valueobject.PolicyAllowed {
		return
	}
	t.Fatal("expected path-constrained command reading outside workspace to be blocked")
}

func TestCheckCommand_PathConstrainedSkipsFlagsAndGlobs(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("cat -n *.go")
	if result.Status != valueobject.PolicyAllowed {
		t.Fatalf("expected flags/globs to be skipped from path checks, got %+v", result)
	}
}

func TestCheckCommand_RejectsEmpty(t *testing.T) {
	e := newTestEngine(t)
	result := e.CheckCommand("   ")
	if result.Status != valueobject.PolicyBlocked {
		t.Fatal("expected empty command to be blocked")
	}
}

func TestCheckBarePipe(t *testing.T) {
	cases := map[string]bool{
		"ls | sh":      true,
		"ls || true":   false,
		"echo a||b":    false,
		"echo a|b|c":   true,
		"no pipe here": false,
	}
	for input, want := range cases {
		if got := checkBarePipe(input); got != want {
			t.Errorf("checkBarePipe(%q) = %v, want %v", input, got, want)
		}
	}
}
