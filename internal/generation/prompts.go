package generation

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/phrazzld/triage/internal/domain"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Template names. An override directory may provide any subset of them.
const (
	ChatTemplate    = "chat.tmpl"
	SummaryTemplate = "summary.tmpl"
	ActionTemplate  = "action.tmpl"
)

// Prompts renders the prompts sent to a backend.
type Prompts struct {
	tmpl *template.Template
}

// ChatData is the data passed to the chat template.
type ChatData struct {
	Input      string
	IsGreeting bool
	HasTasks   bool
	TaskCount  int
	History    []Exchange
	TaskID     *int64
}

// SummaryData is the data passed to the summary template.
type SummaryData struct {
	Tasks string
}

// DefaultPrompts returns the embedded prompt templates.
func DefaultPrompts() *Prompts {
	return &Prompts{tmpl: template.Must(template.ParseFS(defaultTemplates, "templates/*.tmpl"))}
}

// LoadPrompts returns the embedded templates with any *.tmpl files found in
// dir replacing the default of the same name. An empty dir yields the defaults.
func LoadPrompts(dir string) (*Prompts, error) {
	p := DefaultPrompts()
	if dir == "" {
		return p, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: prompt template directory: %v", ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: prompt template path %s is not a directory", ErrInvalidConfig, dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(matches) == 0 {
		return p, nil
	}

	tmpl, err := p.tmpl.ParseFiles(matches...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", ErrInvalidConfig, err)
	}
	return &Prompts{tmpl: tmpl}, nil
}

// Chat renders the prompt for a free-form input.
func (p *Prompts) Chat(input string, c Context) (string, error) {
	data := ChatData{
		Input:      input,
		IsGreeting: c.IsGreeting,
		HasTasks:   c.HasTasks,
		TaskCount:  c.TaskCount,
		History:    c.History,
		TaskID:     c.TaskID,
	}
	return p.render(ChatTemplate, data)
}

// Summary renders the prompt asking for a summary of a formatted batch.
func (p *Prompts) Summary(batchText string) (string, error) {
	return p.render(SummaryTemplate, SummaryData{Tasks: batchText})
}

// Action renders the prompt asking how to act on a task.
func (p *Prompts) Action(s domain.TaskSnapshot) (string, error) {
	return p.render(ActionTemplate, s)
}

func (p *Prompts) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}
