package contextpack

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentdev/pkg/logx"
)

// Default budgets. The total budget leaves headroom in a typical agent
// context window; the per-file budget keeps one large file from crowding
// out the rest.
const (
	DefaultTotalBudget = 64000
	DefaultFileBudget  = 4000
	maxFileBytes       = 512 * 1024
)

// Options configures a pack run.
type Options struct {
	// TotalBudget caps the tokens of the whole snapshot.
	TotalBudget int
	// FileBudget caps the tokens of a single file's content.
	FileBudget int
	// ExtraIgnoreDirs are skipped in addition to the standard caches and
	// VCS directories (the dev-server state dir goes here).
	ExtraIgnoreDirs []string
}

// Packer writes project snapshots.
type Packer struct {
	projectDir string
	opts       Options
	counter    *TokenCounter
	logger     *logx.Logger
}

// NewPacker creates a Packer for the project at projectDir.
func NewPacker(projectDir string, opts Options) *Packer {
	if opts.TotalBudget <= 0 {
		opts.TotalBudget = DefaultTotalBudget
	}
	if opts.FileBudget <= 0 {
		opts.FileBudget = DefaultFileBudget
	}

	return &Packer{
		projectDir: projectDir,
		opts:       opts,
		counter:    NewTokenCounter(),
		logger:     logx.NewLogger("contextpack"),
	}
}

// Pack writes the markdown snapshot to w and returns the number of tokens
// emitted.
func (p *Packer) Pack(w io.Writer) (int, error) {
	files, err := p.collect()
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Project snapshot: %s\n\n", filepath.Base(p.projectDir))

	buf.WriteString("## File tree\n\n```\n")
	for _, f := range files {
		buf.WriteString(f)
		buf.WriteByte('\n')
	}
	buf.WriteString("```\n")

	total := p.counter.Count(buf.String())

	for _, rel := range files {
		if total >= p.opts.TotalBudget {
			fmt.Fprintf(&buf, "\n*[token budget exhausted; remaining files omitted]*\n")
			break
		}

		section, tokens := p.renderFile(rel, p.opts.TotalBudget-total)
		if section == "" {
			continue
		}
		buf.WriteString(section)
		total += tokens
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	p.logger.Debug("Packed %d files, %d tokens, %d bytes", len(files), total, n)
	return total, nil
}

// renderFile returns the markdown section for one file and its token cost.
// Empty when the file is unreadable or binary.
func (p *Packer) renderFile(rel string, remaining int) (string, int) {
	data, err := os.ReadFile(filepath.Join(p.projectDir, rel))
	if err != nil {
		p.logger.Warn("Skipping unreadable file %s: %v", rel, err)
		return "", 0
	}
	if bytes.ContainsRune(data, 0) {
		return "", 0
	}

	content := string(data)
	budget := p.opts.FileBudget
	if remaining < budget {
		budget = remaining
	}

	truncated := false
	if p.counter.Count(content) > budget {
		content = p.counter.Truncate(content, budget)
		truncated = true
	}

	var section strings.Builder
	fmt.Fprintf(&section, "\n## %s\n\n```%s\n%s", rel, fenceLang(rel), content)
	if !strings.HasSuffix(content, "\n") {
		section.WriteByte('\n')
	}
	section.WriteString("```\n")
	if truncated {
		fmt.Fprintf(&section, "*[truncated to fit the token budget]*\n")
	}

	out := section.String()
	return out, p.counter.Count(out)
}

// collect walks the project tree and returns the relative paths of the
// files to include, sorted.
func (p *Packer) collect() ([]string, error) {
	var files []string

	err := filepath.WalkDir(p.projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != p.projectDir && p.skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if skipFile(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileBytes {
			return nil
		}

		rel, err := filepath.Rel(p.projectDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", p.projectDir, err)
	}

	sort.Strings(files)
	return files, nil
}

func (p *Packer) skipDir(name string) bool {
	for _, extra := range p.opts.ExtraIgnoreDirs {
		if name == extra {
			return true
		}
	}
	switch name {
	case "__pycache__", "node_modules", ".git", ".venv", ".pytest_cache",
		".mypy_cache", ".ruff_cache", ".langgraph_api", ".agentdev":
		return true
	}
	return strings.HasPrefix(name, ".")
}

func skipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch filepath.Ext(name) {
	case ".pyc", ".so", ".db", ".sqlite", ".lock", ".svg", ".png", ".jpg", ".gif", ".pdf", ".zip", ".gz":
		return true
	}
	return false
}

// fenceLang picks the code-fence language tag for a file.
func fenceLang(rel string) string {
	switch filepath.Ext(rel) {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md":
		return "markdown"
	case ".sh":
		return "bash"
	default:
		return ""
	}
}
