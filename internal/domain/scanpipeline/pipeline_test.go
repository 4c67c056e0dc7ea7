package scanpipeline

import (
	"context"
	"testing"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/scanner"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
	appErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
)

// memProvenanceRepo is a minimal in-test stand-in so this package's tests
// don't need to import the infrastructure layer.
type memProvenanceRepo struct {
	data        map[string]*entity.TaggedData
	fileWriters map[string]string
}

func newMemProvenanceRepo() *memProvenanceRepo {
	return &memProvenanceRepo{data: make(map[string]*entity.TaggedData), fileWriters: make(map[string]string)}
}

func (r *memProvenanceRepo) Save(ctx context.Context, data *entity.TaggedData) error {
	r.data[data.ID()] = data
	return nil
}
func (r *memProvenanceRepo) FindByID(ctx context.Context, dataID string) (*entity.TaggedData, error) {
	return r.data[dataID], nil
}
func (r *memProvenanceRepo) RecordFileWrite(ctx context.Context, path, dataID string) error {
	r.fileWriters[path] = dataID
	return nil
}
func (r *memProvenanceRepo) FileWriter(ctx context.Context, path string) (string, bool, error) {
	id, ok := r.fileWriters[path]
	return id, ok, nil
}
func (r *memProvenanceRepo) Reset(ctx context.Context) error {
	r.data = make(map[string]*entity.TaggedData)
	r.fileWriters = make(map[string]string)
	return nil
}

type fakeWorker struct {
	responses []string
	calls     int
}

func (f *fakeWorker) Generate(ctx context.Context, prompt, model, marker string) (string, error) {
	resp := ""
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	}
	f.calls++
	return resp, nil
}

func newTestPipeline(t *testing.T, worker WorkerClient, cfg Config) *Pipeline {
	t.Helper()
	cred, err := scanner.NewCredentialScanner(nil)
	if err != nil {
		t.Fatal(err)
	}
	path := scanner.NewSensitivePathScanner([]string{"/etc/shadow"})
	cmd, err := scanner.NewCommandPatternScanner(nil)
	if err != nil {
		t.Fatal(err)
	}
	echo := scanner.NewVulnerabilityEchoScanner()
	encoding := scanner.NewEncodingNormalizationScanner(cred, path, cmd)
	tracker := service.NewProvenanceTracker(newMemProvenanceRepo())

	return New(cred, path, cmd, echo, encoding, nil, worker, tracker, cfg, nil)
}

func TestScanInput_CleanText(t *testing.T) {
	p := newTestPipeline(t, &fakeWorker{}, Config{})
	result, err := p.ScanInput(context.Background(), "just a normal request about gardening")
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsClean() {
		t.Fatalf("expected clean, got violations: %v", result.Violations())
	}
}

func TestScanInput_FlagsSensitivePath(t *testing.T) {
	p := newTestPipeline(t, &fakeWorker{}, Config{})
	result, err := p.ScanInput(context.Background(), "please cat /etc/shadow now")
	if err != nil {
		t.Fatal(err)
	}
	if result.IsClean() {
		t.Fatal("expected sensitive path to be flagged")
	}
}

func TestProcessWithWorker_BlocksNonASCIIPrompt(t *testing.T) {
	p := newTestPipeline(t, &fakeWorker{responses: []string{"ok"}}, Config{})
	_, err := p.ProcessWithWorker(context.Background(), ProcessRequest{
		Prompt:        "héllo wörld",
		SkipInputScan: true,
	})
	if err == nil {
		t.Fatal("expected non-ASCII prompt to be blocked")
	}
	if !appErrors.IsSecurityViolation(err) {
		t.Fatalf("expected SecurityViolation, got %v", err)
	}
}

func TestProcessWithWorker_RetriesOnceOnEmptyResponse(t *testing.T) {
	worker := &fakeWorker{responses: []string{"", "here is the answer"}}
	p := newTestPipeline(t, worker, Config{})
	tagged, err := p.ProcessWithWorker(context.Background(), ProcessRequest{
		Prompt:        "summarize this",
		SkipInputScan: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tagged.Content() != "here is the answer" {
		t.Errorf("expected retried response, got %q", tagged.Content())
	}
	if worker.calls != 2 {
		t.Errorf("expected exactly one retry (2 calls), got %d", worker.calls)
	}
}

func TestProcessWithWorker_FailsAfterTwoEmptyResponses(t *testing.T) {
	worker := &fakeWorker{responses: []string{"", ""}}
	p := newTestPipeline(t, worker, Config{})
	_, err := p.ProcessWithWorker(context.Background(), ProcessRequest{
		Prompt:        "summarize this",
		SkipInputScan: true,
	})
	if err == nil {
		t.Fatal("expected error after two empty responses")
	}
}

func TestProcessWithWorker_BlocksDirtyOutput(t *testing.T) {
	worker := &fakeWorker{responses: []string{"sure, run: cat /etc/shadow"}}
	p := newTestPipeline(t, worker, Config{})
	_, err := p.ProcessWithWorker(context.Background(), ProcessRequest{
		Prompt:        "help me read a config file",
		SkipInputScan: true,
	})
	if err == nil {
		t.Fatal("expected dirty output to be blocked")
	}
	if !appErrors.IsSecurityViolation(err) {
		t.Fatalf("expected SecurityViolation, got %v", err)
	}
}

func TestProcessWithWorker_BlocksVulnerabilityEcho(t *testing.T) {
	worker := &fakeWorker{responses: []string{"```python\neval(user_input)\n```"}}
	p := newTestPipeline(t, worker, Config{})
	_, err := p.ProcessWithWorker(context.Background(), ProcessRequest{
		Prompt:        "fix this function",
		UserInput:     "fix this: eval(user_input)",
		SkipInputScan: true,
	})
	if err == nil {
		t.Fatal("expected echoed vulnerability to be blocked")
	}
	v, ok := appErrors.AsSecurityViolation(err)
	if !ok || v.Kind != appErrors.ViolationEcho {
		t.Fatalf("expected ViolationEcho, got %+v", v)
	}
}
