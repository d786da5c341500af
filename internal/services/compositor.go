package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

//go:embed templates/composite.html
var defaultCompositeHTML string

// Slot is where one shot lands on the composite, in pixels.
type Slot struct {
	X, Y, W, H int
}

// DefaultSlots lays four 720x540 shots on an 1800x1200 sheet, two columns of
// two.
var DefaultSlots = []Slot{
	{X: 40, Y: 40, W: 720, H: 540},
	{X: 40, Y: 620, W: 720, H: 540},
	{X: 1040, Y: 40, W: 720, H: 540},
	{X: 1040, Y: 620, W: 720, H: 540},
}

type CompositorOptions struct {
	Width      int
	Height     int
	Slots      []Slot
	OutputDir  string
	ChromePath string
	// TemplateHTML overrides the embedded page template when set.
	TemplateHTML string
	Mirror       bool
	RenderDelay  time.Duration
}

// HTMLCompositor lays the shots out as an HTML page and screenshots it with
// headless Chrome.
type HTMLCompositor struct {
	opts CompositorOptions
	tmpl *template.Template
	log  zerolog.Logger
}

func NewHTMLCompositor(opts CompositorOptions, log zerolog.Logger) (*HTMLCompositor, error) {
	if opts.Width <= 0 {
		opts.Width = 1800
	}
	if opts.Height <= 0 {
		opts.Height = 1200
	}
	if len(opts.Slots) == 0 {
		opts.Slots = DefaultSlots
	}
	if opts.RenderDelay <= 0 {
		opts.RenderDelay = 300 * time.Millisecond
	}

	src := defaultCompositeHTML
	if opts.TemplateHTML != "" {
		data, err := os.ReadFile(opts.TemplateHTML)
		if err != nil {
			return nil, fmt.Errorf("reading composite template: %w", err)
		}
		src = string(data)
	}
	tmpl, err := template.New("composite").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &HTMLCompositor{
		opts: opts,
		tmpl: tmpl,
		log:  log.With().Str("component", "compositor").Logger(),
	}, nil
}

type compositePage struct {
	Width      int
	Height     int
	Background template.URL
	Mirror     bool
	Slots      []compositeSlot
}

type compositeSlot struct {
	Slot
	Src template.URL
}

// Composite writes Final_<cycle>.png next to the shots and returns its path.
func (c *HTMLCompositor) Composite(ctx context.Context, cycle int, images []string, templatePath string) (string, error) {
	if len(images) != len(c.opts.Slots) {
		return "", fmt.Errorf("composite needs %d images, got %d", len(c.opts.Slots), len(images))
	}

	outDir := c.opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(images[0])
	}
	html, err := c.renderPage(images, templatePath)
	if err != nil {
		return "", err
	}

	pagePath := filepath.Join(outDir, fmt.Sprintf(".composite_%d.html", cycle))
	if err := os.WriteFile(pagePath, html, 0o644); err != nil {
		return "", fmt.Errorf("failed writing page: %w", err)
	}
	defer os.Remove(pagePath)

	pageURL, err := fileURL(pagePath)
	if err != nil {
		return "", err
	}
	png, err := c.screenshot(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed generating image: %w", err)
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("Final_%d.png", cycle))
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		return "", fmt.Errorf("failed saving image: %w", err)
	}
	c.log.Debug().Int("cycle", cycle).Str("path", outPath).Int("bytes", len(png)).Msg("Composite rendered")
	return outPath, nil
}

func (c *HTMLCompositor) renderPage(images []string, templatePath string) ([]byte, error) {
	p := compositePage{
		Width:  c.opts.Width,
		Height: c.opts.Height,
		Mirror: c.opts.Mirror,
	}
	if templatePath != "" {
		u, err := fileURL(templatePath)
		if err != nil {
			return nil, err
		}
		p.Background = template.URL(u)
	}
	for i, img := range images {
		u, err := fileURL(img)
		if err != nil {
			return nil, err
		}
		p.Slots = append(p.Slots, compositeSlot{Slot: c.opts.Slots[i], Src: template.URL(u)})
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *HTMLCompositor) screenshot(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if c.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var png []byte
	err := chromedp.Run(cdpCtx,
		chromedp.EmulateViewport(int64(c.opts.Width), int64(c.opts.Height)),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(c.opts.RenderDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithClip(&page.Viewport{Width: float64(c.opts.Width), Height: float64(c.opts.Height), Scale: 1}).
				Do(ctx)
			if err != nil {
				return err
			}
			png = buf
			return nil
		}),
	)
	return png, err
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
