package llm

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompt is a system message plus a user message template.
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	tmpl *template.Template
}

// Prompts holds the prompt of every task sent to the model.
type Prompts struct {
	Summary Prompt `yaml:"summary"`
}

// LoadPrompts parses the embedded prompt file.
func LoadPrompts() (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(promptsYAML, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	tmpl, err := template.New("summary").Parse(p.Summary.User)
	if err != nil {
		return nil, fmt.Errorf("parse summary prompt: %w", err)
	}
	p.Summary.tmpl = tmpl
	return &p, nil
}

// RenderUser fills the user template with the excerpt.
func (p *Prompt) RenderUser(ex Excerpt) (string, error) {
	body, err := ex.JSON()
	if err != nil {
		return "", err
	}
	data := struct {
		Excerpt
		Body string
	}{ex, string(body)}

	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}
