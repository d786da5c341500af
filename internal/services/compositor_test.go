package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shotPaths(dir string) []string {
	var out []string
	for i := 0; i < 4; i++ {
		out = append(out, filepath.Join(dir, "image1_"+string(rune('0'+i))+".jpg"))
	}
	return out
}

func TestCompositePageLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewHTMLCompositor(CompositorOptions{Mirror: true}, zerolog.Nop())
	require.NoError(t, err)

	html, err := c.renderPage(shotPaths(dir), filepath.Join(dir, "template.jpg"))
	require.NoError(t, err)
	page := string(html)

	assert.Contains(t, page, "width: 1800px")
	assert.Contains(t, page, "height: 1200px")
	for _, pos := range []string{
		"left: 40px; top: 40px;",
		"left: 40px; top: 620px;",
		"left: 1040px; top: 40px;",
		"left: 1040px; top: 620px;",
	} {
		assert.Contains(t, page, pos)
	}
	assert.Equal(t, 4, strings.Count(page, "width: 720px; height: 540px;"))
	assert.Equal(t, 4, strings.Count(page, "shot mirror"))
	assert.Contains(t, page, `src="file://`+filepath.ToSlash(filepath.Join(dir, "template.jpg"))+`"`)
	assert.Contains(t, page, filepath.ToSlash(filepath.Join(dir, "image1_3.jpg")))
}

func TestCompositePageWithoutTemplate(t *testing.T) {
	c, err := NewHTMLCompositor(CompositorOptions{}, zerolog.Nop())
	require.NoError(t, err)

	html, err := c.renderPage(shotPaths(t.TempDir()), "")
	require.NoError(t, err)
	assert.NotContains(t, string(html), `class="template"`)
	assert.NotContains(t, string(html), "mirror\"")
}

func TestCompositorCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "custom.html")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{{range .Slots}}[{{.X}},{{.Y}}]{{end}}`), 0o644))

	c, err := NewHTMLCompositor(CompositorOptions{
		TemplateHTML: tmpl,
		Slots:        []Slot{{X: 1, Y: 2, W: 3, H: 4}, {X: 5, Y: 6, W: 7, H: 8}},
	}, zerolog.Nop())
	require.NoError(t, err)

	html, err := c.renderPage([]string{"a.jpg", "b.jpg"}, "")
	require.NoError(t, err)
	assert.Equal(t, "[1,2][5,6]", string(html))
}

func TestCompositorRejectsWrongImageCount(t *testing.T) {
	c, err := NewHTMLCompositor(CompositorOptions{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Composite(context.Background(), 1, []string{"a.jpg"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 4 images")
}

func TestCompositorMissingTemplateFile(t *testing.T) {
	_, err := NewHTMLCompositor(CompositorOptions{TemplateHTML: filepath.Join(t.TempDir(), "nope.html")}, zerolog.Nop())
	require.ErrorIs(t, err, os.ErrNotExist)
}
