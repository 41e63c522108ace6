package mail

import (
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

// DefaultTemplate — шаблон, если в options шага он не указан.
const DefaultTemplate = "discharge_default"

//go:embed templates/default.yaml
var defaultCatalogYAML []byte

// TemplateSpec — описание шаблона письма в YAML.
type TemplateSpec struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
	Text    string `yaml:"text"`
}

type catalogFile struct {
	Templates []TemplateSpec `yaml:"templates"`
}

// compiled — шаблон, разобранный при загрузке каталога.
type compiled struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template // nil, если text не задан
}

// Catalog — набор шаблонов писем по имени.
type Catalog struct {
	templates map[string]*compiled
}

// DefaultCatalog возвращает встроенный каталог.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("mail: invalid default catalog: %v", err))
	}
	return c
}

// LoadCatalog читает каталог из YAML файла.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog разбирает YAML каталог и компилирует шаблоны.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	c := &Catalog{templates: make(map[string]*compiled, len(file.Templates))}
	for _, spec := range file.Templates {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: template without name", ErrTemplateParse)
		}
		if _, dup := c.templates[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate template %q", ErrTemplateParse, spec.Name)
		}
		if spec.Subject == "" || spec.HTML == "" {
			return nil, fmt.Errorf("%w: template %q needs subject and html", ErrTemplateParse, spec.Name)
		}

		t, err := compile(spec)
		if err != nil {
			return nil, err
		}
		c.templates[spec.Name] = t
	}

	return c, nil
}

// Has проверяет наличие шаблона.
func (c *Catalog) Has(name string) bool {
	_, ok := c.templates[name]
	return ok
}

func (c *Catalog) get(name string) (*compiled, error) {
	t, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return t, nil
}

func compile(spec TemplateSpec) (*compiled, error) {
	out := &compiled{}
	var err error

	out.subject, err = texttemplate.New(spec.Name + ".subject").Funcs(texttemplate.FuncMap(templateFuncs)).Parse(spec.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %s subject: %v", ErrTemplateParse, spec.Name, err)
	}

	out.html, err = htmltemplate.New(spec.Name + ".html").Funcs(htmltemplate.FuncMap(templateFuncs)).Parse(spec.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: %s html: %v", ErrTemplateParse, spec.Name, err)
	}

	if spec.Text != "" {
		out.text, err = texttemplate.New(spec.Name + ".text").Funcs(texttemplate.FuncMap(templateFuncs)).Parse(spec.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s text: %v", ErrTemplateParse, spec.Name, err)
		}
	}

	return out, nil
}
