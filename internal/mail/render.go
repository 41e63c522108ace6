package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shaiso/Vetflow/internal/domain"
)

// Ошибки шаблонов.
var (
	ErrTemplateNotFound = errors.New("email template not found")
	ErrTemplateParse    = errors.New("template parse error")
	ErrTemplateRender   = errors.New("template render error")
)

// Data — данные, доступные в шаблоне письма.
//
//	{{ .Patient.Name }}, {{ .Owner.Name }}, {{ .Clinical.Medications }}
//	{{ .Summary }} — текст выписки целиком
//	{{ range .Paragraphs }} — выписка по абзацам
//	{{ .Clinic }} — название клиники
type Data struct {
	CaseID     string
	Patient    domain.PatientInfo
	Owner      domain.OwnerInfo
	Clinical   domain.ClinicalInfo
	Summary    string
	Paragraphs []string
	Clinic     string
}

// Renderer рендерит письма владельцам по каталогу шаблонов.
type Renderer struct {
	catalog *Catalog
	policy  *bluemonday.Policy
	clinic  string
}

// Config — конфигурация Renderer.
type Config struct {
	// Catalog — шаблоны. По умолчанию DefaultCatalog().
	Catalog *Catalog

	// ClinicName — подпись в письмах.
	ClinicName string
}

// NewRenderer создаёт Renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "our clinic"
	}
	return &Renderer{
		catalog: cfg.Catalog,
		policy:  bluemonday.UGCPolicy(),
		clinic:  cfg.ClinicName,
	}
}

// RenderDischarge рендерит письмо по шаблону name.
// Пустой name — DefaultTemplate. HTML результата уже очищен.
func (r *Renderer) RenderDischarge(name string, c *domain.Case, summary string) (*domain.EmailContent, error) {
	if name == "" {
		name = DefaultTemplate
	}
	t, err := r.catalog.get(name)
	if err != nil {
		return nil, err
	}

	data := r.data(c, summary)

	subject, err := execute(t.subject, data)
	if err != nil {
		return nil, err
	}
	html, err := execute(t.html, data)
	if err != nil {
		return nil, err
	}

	text := summary
	if t.text != nil {
		if text, err = execute(t.text, data); err != nil {
			return nil, err
		}
	}

	return &domain.EmailContent{
		Subject: strings.TrimSpace(subject),
		HTML:    r.Sanitize(strings.TrimSpace(html)),
		Text:    strings.TrimSpace(text),
	}, nil
}

// Sanitize очищает HTML от скриптов, обработчиков событий и опасных ссылок.
func (r *Renderer) Sanitize(html string) string {
	return r.policy.Sanitize(html)
}

func (r *Renderer) data(c *domain.Case, summary string) Data {
	d := Data{
		Summary:    strings.TrimSpace(summary),
		Paragraphs: paragraphs(summary),
		Clinic:     r.clinic,
	}
	if c != nil {
		d.CaseID = c.ID.String()
		if c.Entities != nil {
			d.Patient = c.Entities.Patient
			d.Owner = c.Entities.Owner
			d.Clinical = c.Entities.Clinical
		}
	}
	return d
}

// executor — общий интерфейс text/template и html/template.
type executor interface {
	Execute(wr io.Writer, data any) error
}

func execute(t executor, data Data) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// paragraphs разбивает текст на абзацы по пустым строкам.
func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
