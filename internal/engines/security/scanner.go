package security

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/logger"
	"github.com/fulmenhq/codescore/pkg/tools"
)

//go:embed schemas/semgrep-output.json
var semgrepOutputSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func outputSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(semgrepOutputSchema))
	})
	return compiledSchema, schemaErr
}

var extensions = map[language.Language]string{
	language.JavaScript: ".js", language.TypeScript: ".ts", language.Python: ".py",
	language.Java: ".java", language.C: ".c", language.CPP: ".cpp", language.CSharp: ".cs",
	language.Go: ".go", language.Rust: ".rs", language.Ruby: ".rb", language.PHP: ".php",
	language.Shell: ".sh",
}

// ExternalScanner runs a semgrep-compatible static analysis binary over a
// temporary copy of the code.
type ExternalScanner struct {
	exec   tools.Executor
	binary string
	config string
	log    *logger.Logger
}

// NewExternalScanner returns a scanner invoking binary with the given rule
// configuration. A nil executor uses tools.NewLocalExecutor.
func NewExternalScanner(exec tools.Executor, binary, config string, log *logger.Logger) *ExternalScanner {
	if exec == nil {
		exec = tools.NewLocalExecutor()
	}
	if binary == "" {
		binary = "semgrep"
	}
	if config == "" {
		config = "auto"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExternalScanner{exec: exec, binary: binary, config: config, log: log}
}

type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Start   struct {
			Line int `json:"line"`
			Col  int `json:"col"`
		} `json:"start"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
		} `json:"extra"`
	} `json:"results"`
}

// Scan writes code to a unique temporary file, runs the scanner on it and
// converts its findings. A missing binary yields no findings and no error.
func (s *ExternalScanner) Scan(ctx context.Context, code string, lang language.Language) ([]assess.Issue, error) {
	if !s.exec.IsAvailable(s.binary) {
		s.log.Debug("Static analysis binary not installed, skipping", logger.String("binary", s.binary))
		return nil, nil
	}

	ext := extensions[lang]
	if ext == "" {
		ext = ".txt"
	}
	file, err := os.CreateTemp("", "codescore-scan-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary source file: %w", err)
	}
	path := file.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := file.WriteString(code); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write temporary source file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize temporary source file: %w", err)
	}

	res, err := s.exec.Execute(ctx, tools.ExecuteOptions{
		Tool: s.binary,
		Args: []string{"--json", "--quiet", "--disable-version-check", "--config", s.config, path},
	})
	if errors.Is(err, tools.ErrToolNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", s.binary, err)
	}
	if res.ExitCode > 1 && len(strings.TrimSpace(string(res.Stdout))) == 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s", s.binary, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return parseSemgrep(res.Stdout)
}

func parseSemgrep(stdout []byte) ([]assess.Issue, error) {
	schema, err := outputSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load output schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(stdout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scanner output: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("unexpected scanner output: %s", strings.Join(msgs, "; "))
	}

	var out semgrepOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("failed to decode scanner output: %w", err)
	}
	issues := make([]assess.Issue, 0, len(out.Results))
	for _, r := range out.Results {
		issues = append(issues, assess.Issue{
			Category: assess.CategorySecurity,
			Severity: semgrepSeverity(r.Extra.Severity),
			Message:  strings.TrimSpace(r.Extra.Message),
			Line:     r.Start.Line,
			Column:   r.Start.Col,
			Rule:     r.CheckID,
		})
	}
	return issues, nil
}

func semgrepSeverity(s string) assess.Severity {
	switch strings.ToUpper(s) {
	case "ERROR", "HIGH", "CRITICAL":
		return assess.SeverityError
	case "INFO", "LOW":
		return assess.SeverityInfo
	default:
		return assess.SeverityWarning
	}
}
