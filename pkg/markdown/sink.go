// Package markdown implements MarkdownSink: an append-only rendering of
// memories to a daily log file and, optionally, a per-project file.
package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/eva-memory/pkg/model"
)

// Sink renders memories under root/daily and root/projects.
type Sink struct {
	root string
}

// New returns a Sink rooted at root.
func New(root string) *Sink {
	return &Sink{root: root}
}

// Append renders mem's block to daily/<YYYY-MM-DD>.md, creating the file
// with a header if absent, and additionally to projects/<project>.md when
// mem.Project is set. It never reads existing content.
func (s *Sink) Append(mem *model.Memory) error {
	block := renderBlock(mem)
	dailyPath := filepath.Join(s.root, "daily", mem.Created.Format("2006-01-02")+".md")
	if err := appendWithHeader(dailyPath, fmt.Sprintf("# %s\n\n", mem.Created.Format("2006-01-02")), block); err != nil {
		return fmt.Errorf("writing daily log: %w", err)
	}
	if mem.Project != "" {
		projPath := filepath.Join(s.root, "projects", mem.Project+".md")
		header := fmt.Sprintf("# %s\n\n", mem.Project)
		if err := appendWithHeader(projPath, header, block); err != nil {
			return fmt.Errorf("writing project log: %w", err)
		}
	}
	return nil
}

func appendWithHeader(path, header, block string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if needsHeader {
		if _, err := f.WriteString(header); err != nil {
			return err
		}
	}
	_, err = f.WriteString(block)
	return err
}

// renderBlock renders the required verbatim markdown block for mem.
func renderBlock(mem *model.Memory) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## [%s] %s\n", strings.ToUpper(mem.Type), mem.Summary)
	fmt.Fprintf(&b, "- **ID:** `%s`\n", mem.ID)
	fmt.Fprintf(&b, "- **Importance:** %s (%d/10)\n", strings.Repeat("*", mem.Importance), mem.Importance)
	fmt.Fprintf(&b, "- **Time:** %s\n", mem.Created.Format("2006-01-02T15:04:05Z07:00"))

	if mem.Project != "" {
		fmt.Fprintf(&b, "- **Project:** %s\n", mem.Project)
	}
	if len(mem.Entities) > 0 {
		entities := mem.Entities
		if len(entities) > 8 {
			entities = entities[:8]
		}
		fmt.Fprintf(&b, "- **Entities:** %s\n", strings.Join(entities, ", "))
	}
	if len(mem.Tags) > 0 {
		tags := make([]string, len(mem.Tags))
		for i, t := range mem.Tags {
			tags[i] = "#" + t
		}
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(tags, ", "))
	}
	if mem.Confidence != 0 {
		fmt.Fprintf(&b, "- **Confidence:** %.2f\n", mem.Confidence)
	}
	if mem.DecayDays != nil {
		fmt.Fprintf(&b, "- **Expires:** %d days\n", *mem.DecayDays)
	}
	if mem.Supersedes != "" {
		fmt.Fprintf(&b, "- **Supersedes:** `%s`\n", mem.Supersedes)
	}
	if mem.SourceChannel != "" || mem.SourceMessageID != "" {
		fmt.Fprintf(&b, "- **Source:** %s (%s)\n", mem.SourceChannel, mem.SourceMessageID)
	}

	fmt.Fprintf(&b, "\n%s\n\n---\n\n", mem.Content)
	return b.String()
}
