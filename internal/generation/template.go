package generation

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

const templateSuffix = ".tmpl"

// DefaultTemplate is rendered when a request names an unknown template.
const DefaultTemplate = "python-cli"

// templateData is what each project template is rendered with.
type templateData struct {
	Name    string
	Idea    string
	Options map[string]any
}

// TemplateGenerator renders one of the built-in project templates.
// Every file under templates/<name>/ ending in .tmpl becomes a project file
// with the suffix removed.
type TemplateGenerator struct {
	templates map[string]map[string]*template.Template
}

// Ensure TemplateGenerator implements Generator
var _ Generator = (*TemplateGenerator)(nil)

// NewTemplateGenerator parses the embedded templates.
func NewTemplateGenerator() (*TemplateGenerator, error) {
	sets := make(map[string]map[string]*template.Template)

	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, templateSuffix) {
			return nil
		}

		rel := strings.TrimPrefix(p, "templates/")
		name, file, ok := strings.Cut(rel, "/")
		if !ok {
			return nil
		}

		body, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		tmpl, err := template.New(path.Base(p)).Parse(string(body))
		if err != nil {
			return fmt.Errorf("%w: template %s: %v", ErrInvalidConfig, p, err)
		}

		if sets[name] == nil {
			sets[name] = make(map[string]*template.Template)
		}
		sets[name][strings.TrimSuffix(file, templateSuffix)] = tmpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load project templates: %w", err)
	}
	if _, ok := sets[DefaultTemplate]; !ok {
		return nil, fmt.Errorf("%w: missing default template %s", ErrInvalidConfig, DefaultTemplate)
	}

	return &TemplateGenerator{templates: sets}, nil
}

// names returns the names of the available templates, sorted.
func (g *TemplateGenerator) names() []string {
	names := make([]string, 0, len(g.templates))
	for name := range g.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate renders the requested template, or DefaultTemplate if it is unknown.
func (g *TemplateGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set, ok := g.templates[req.Template]
	if !ok {
		set = g.templates[DefaultTemplate]
	}

	data := templateData{Name: req.Name, Idea: req.Idea, Options: req.Options}
	files := make(map[string]string, len(set))
	for file, tmpl := range set {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("%w: render %s: %v", ErrGenerationFailed, file, err)
		}
		files[file] = buf.String()
	}
	return &Artifact{Files: files}, nil
}
