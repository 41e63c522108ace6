package mail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Vetflow/internal/domain"
)

func testCase() *domain.Case {
	return &domain.Case{
		ID: uuid.New(),
		Entities: &domain.Entities{
			Patient: domain.PatientInfo{Name: "Rex", Species: "dog"},
			Owner:   domain.OwnerInfo{Name: "Anna", Email: "anna@example.com"},
			Clinical: domain.ClinicalInfo{
				Medications:  []domain.Medication{{Name: "Carprofen", Dosage: "25 mg", Frequency: "q12h"}},
				Instructions: []string{"Keep the incision dry"},
			},
		},
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.True(t, c.Has(DefaultTemplate))
	assert.True(t, c.Has("discharge_short"))
	assert.False(t, c.Has("missing"))
}

func TestRenderDischarge_Default(t *testing.T) {
	r := NewRenderer(Config{ClinicName: "Happy Paws"})

	content, err := r.RenderDischarge("", testCase(), "Rex had surgery.\n\nHe is recovering well.")
	require.NoError(t, err)

	assert.Equal(t, "Rex: discharge instructions from Happy Paws", content.Subject)
	assert.Contains(t, content.HTML, "<p>Dear Anna,</p>")
	assert.Contains(t, content.HTML, "<p>Rex had surgery.</p>")
	assert.Contains(t, content.HTML, "<p>He is recovering well.</p>")
	assert.Contains(t, content.HTML, "<li>Carprofen, 25 mg, q12h</li>")
	assert.Contains(t, content.HTML, "<li>Keep the incision dry</li>")
	assert.Contains(t, content.Text, "- Carprofen, 25 mg, q12h")
	assert.Contains(t, content.Text, "please call Happy Paws")
}

func TestRenderDischarge_MissingEntitiesUseDefaults(t *testing.T) {
	r := NewRenderer(Config{})

	content, err := r.RenderDischarge(DefaultTemplate, &domain.Case{}, "Summary.")
	require.NoError(t, err)

	assert.Equal(t, "Your pet: discharge instructions from our clinic", content.Subject)
	assert.Contains(t, content.HTML, "Dear pet owner,")
	assert.NotContains(t, content.HTML, "Medications")
}

func TestRenderDischarge_EscapesSummary(t *testing.T) {
	r := NewRenderer(Config{})

	content, err := r.RenderDischarge("discharge_short", testCase(), `<script>alert(1)</script><b onclick="x()">hi</b>`)
	require.NoError(t, err)

	assert.NotContains(t, content.HTML, "<script>")
	assert.NotContains(t, content.HTML, "<b onclick")
}

func TestRenderDischarge_UnknownTemplate(t *testing.T) {
	r := NewRenderer(Config{})

	_, err := r.RenderDischarge("nope", testCase(), "x")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestRenderDischarge_TextFallsBackToSummary(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
templates:
  - name: bare
    subject: "Hi"
    html: "<p>{{ .Summary }}</p>"
`))
	require.NoError(t, err)

	r := NewRenderer(Config{Catalog: catalog})
	content, err := r.RenderDischarge("bare", nil, "  plain summary  ")
	require.NoError(t, err)
	assert.Equal(t, "plain summary", content.Text)
	assert.Equal(t, "<p>plain summary</p>", content.HTML)
}

func TestRenderDischarge_RenderError(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
templates:
  - name: broken
    subject: "{{ .Patient.Nope }}"
    html: "<p></p>"
`))
	require.NoError(t, err)

	r := NewRenderer(Config{Catalog: catalog})
	_, err = r.RenderDischarge("broken", testCase(), "x")
	assert.ErrorIs(t, err, ErrTemplateRender)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "templates: [:"},
		{"no name", "templates:\n  - subject: s\n    html: h\n"},
		{"duplicate", "templates:\n  - {name: a, subject: s, html: h}\n  - {name: a, subject: s, html: h}\n"},
		{"no html", "templates:\n  - {name: a, subject: s}\n"},
		{"bad syntax", "templates:\n  - {name: a, subject: '{{ .X', html: h}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrTemplateParse)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  - {name: custom, subject: s, html: h}\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, c.Has("custom"))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	r := NewRenderer(Config{})

	got := r.Sanitize(`<p>ok</p><script>alert(1)</script><a href="javascript:x()">link</a>`)
	assert.Contains(t, got, "<p>ok</p>")
	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "javascript:")
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, paragraphs("a\r\n\r\n  b c \n\n\n"))
	assert.Nil(t, paragraphs("   "))
}

func TestTemplateFuncs(t *testing.T) {
	def := templateFuncs["default"].(func(any, any) any)
	assert.Equal(t, "x", def("x", ""))
	assert.Equal(t, "x", def("x", nil))
	assert.Equal(t, "y", def("x", "y"))

	coalesce := templateFuncs["coalesce"].(func(...any) any)
	assert.Equal(t, "b", coalesce(nil, "", "b"))
	assert.Nil(t, coalesce())

	title := templateFuncs["title"].(func(string) string)
	assert.Equal(t, "Dog", title("dog"))
	assert.Equal(t, "", title(""))
}
