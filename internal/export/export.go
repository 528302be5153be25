// Package export writes documents to Markdown and HTML files, relocating
// their images into an images/ directory next to the output.
package export

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// ImagesDir is the directory, relative to the exported file, that holds
// localized images.
const ImagesDir = "images"

// DefaultTitle is used for HTML pages exported without a title.
const DefaultTitle = "Multimodal Response"

// Options controls an export.
type Options struct {
	// Title adds a top-level heading when set.
	Title string
	// Localize copies, downloads or writes images into ImagesDir.
	Localize bool
	// NormalizeCode tidies fenced code blocks in text elements.
	NormalizeCode bool
}

// Exporter serializes documents.
type Exporter struct {
	client *http.Client
	log    *logging.Logger
	md     goldmark.Markdown
}

// New creates an Exporter. A nil client gets a 60 second timeout.
func New(client *http.Client, log *logging.Logger) *Exporter {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Exporter{
		client: client,
		log:    logging.OrNop(log),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// WriteMarkdown exports doc as a Markdown file at path.
func (e *Exporter) WriteMarkdown(ctx context.Context, doc *models.Document, path string, opts Options) error {
	md, err := e.Markdown(ctx, doc, filepath.Dir(path), opts)
	if err != nil {
		return err
	}
	return writeFile(path, md)
}

// WriteHTML exports doc as a standalone HTML page at path.
func (e *Exporter) WriteHTML(ctx context.Context, doc *models.Document, path string, opts Options) error {
	md, err := e.Markdown(ctx, doc, filepath.Dir(path), opts)
	if err != nil {
		return err
	}
	page, err := e.HTML(md, opts.Title)
	if err != nil {
		return err
	}
	return writeFile(path, page)
}

// Markdown renders doc for a file stored in dir. With Options.Localize,
// images are placed under dir/images and referenced relatively; an image
// that cannot be localized keeps its original source.
func (e *Exporter) Markdown(ctx context.Context, doc *models.Document, dir string, opts Options) (string, error) {
	var parts []string
	if opts.Title != "" {
		parts = append(parts, "# "+opts.Title+"\n")
	}

	for i, el := range doc.Elements() {
		switch v := el.(type) {
		case models.TextElement:
			content := v.Content
			if opts.NormalizeCode {
				content = NormalizeCodeBlocks(content)
			}
			parts = append(parts, content+"\n")
		case models.ImageElement:
			src := v.Source()
			if opts.Localize {
				local, err := e.localize(ctx, v, i, dir)
				if err != nil {
					if ctx.Err() != nil {
						return "", ctx.Err()
					}
					e.log.Warn("keeping original image source", "subtask", v.Index, "error", err)
				} else {
					src = local
				}
			}
			img := fmt.Sprintf("![%s](%s)", v.Alt(), src)
			if v.Caption != "" {
				img += "\n\n_" + v.Caption + "_"
			}
			parts = append(parts, img+"\n")
		}
	}
	return strings.Join(parts, "\n"), nil
}

// HTML converts Markdown into a styled standalone page.
func (e *Exporter) HTML(md, title string) (string, error) {
	var body bytes.Buffer
	if err := e.md.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	if title == "" {
		title = DefaultTitle
	}
	return fmt.Sprintf(pageTemplate, html.EscapeString(title), body.String()), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset='utf-8'>
<meta name='viewport' content='width=device-width, initial-scale=1'>
<title>%s</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
img { max-width: 100%%; height: auto; }
.caption { font-style: italic; color: #666; margin-top: 5px; }
</style>
</head>
<body>
%s</body>
</html>
`

// localize stores the image under dir/images and returns its relative path.
func (e *Exporter) localize(ctx context.Context, img models.ImageElement, i int, dir string) (string, error) {
	imagesDir := filepath.Join(dir, ImagesDir)
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return "", err
	}

	if img.URL == "" {
		if len(img.Data) == 0 {
			return "", fmt.Errorf("image has no source")
		}
		name := fmt.Sprintf("image_%d%s", i, extensionFor(img.MIMEType))
		if err := os.WriteFile(filepath.Join(imagesDir, name), img.Data, 0644); err != nil {
			return "", err
		}
		return ImagesDir + "/" + name, nil
	}

	u, err := url.Parse(img.URL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	name := fileName(u.Path, i)
	target := filepath.Join(imagesDir, name)

	switch u.Scheme {
	case "http", "https":
		err = e.download(ctx, img.URL, target)
	case "", "file":
		err = copyFile(u.Path, target)
	case "data":
		return "", fmt.Errorf("data URL without decoded data")
	default:
		return "", fmt.Errorf("unsupported image scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}
	return ImagesDir + "/" + name, nil
}

func (e *Exporter) download(ctx context.Context, rawURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("download image: %w", err)
	}
	return f.Close()
}

// fileName picks the local name for the i-th element. The element position
// is always part of the name, so images sharing a base name stay distinct.
func fileName(urlPath string, i int) string {
	name := path.Base(urlPath)
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		return fmt.Sprintf("image_%d.jpg", i)
	}
	return fmt.Sprintf("image_%d_%s", i, name)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func copyFile(src, dst string) error {
	absSrc, err1 := filepath.Abs(src)
	absDst, err2 := filepath.Abs(dst)
	if err1 == nil && err2 == nil && absSrc == absDst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}
