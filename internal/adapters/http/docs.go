package http

import (
	"bytes"
	"html/template"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// OpenAPIPath is the document behind /docs.
var OpenAPIPath = "api/openapi.yaml"

// The page lists the map API by tag above Swagger UI. Tag links deep-link
// into the matching Swagger UI section.
var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} {{.Version}}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body{margin:0;background:#fafafa;font-family:sans-serif}.livemap-index{max-width:1460px;margin:0 auto;padding:16px 20px}.livemap-index h1{color:#80276C}.livemap-index code{color:#555}</style>
</head>
<body>
  <div class="livemap-index">
    <h1>{{.Title}} <small>{{.Version}}</small></h1>
    {{- with .Description}}
    <p>{{.}}</p>
    {{- end}}
    {{- range .Tags}}
    <h3><a href="#/{{.Name}}">{{.Name}}</a></h3>
    {{- with .Description}}
    <p>{{.}}</p>
    {{- end}}
    <ul>
      {{- range .Operations}}
      <li><code>{{.Method}} {{.Path}}</code> {{.Summary}}</li>
      {{- end}}
    </ul>
    {{- end}}
  </div>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      docExpansion: 'list',
      filter: true,
      presets: [SwaggerUIBundle.presets.apis],
    });
  </script>
</body>
</html>`))

type docsOperation struct {
	Method  string
	Path    string
	Summary string
}

type docsTag struct {
	Name        string
	Description string
	Operations  []docsOperation
}

type docsIndex struct {
	Title       string
	Version     string
	Description string
	Tags        []docsTag
}

// apiDocs loads the OpenAPI document once per app.
type apiDocs struct {
	path string
	once sync.Once
	raw  []byte
	doc  *openapi3.T
	page []byte
	err  error
}

func (d *apiDocs) load() error {
	d.once.Do(func() {
		d.raw, d.err = os.ReadFile(d.path)
		if d.err != nil {
			return
		}
		loader := &openapi3.Loader{IsExternalRefsAllowed: false}
		if d.doc, d.err = loader.LoadFromData(d.raw); d.err != nil {
			return
		}
		var buf bytes.Buffer
		if d.err = docsPage.Execute(&buf, buildDocsIndex(d.doc)); d.err == nil {
			d.page = buf.Bytes()
		}
	})
	return d.err
}

// buildDocsIndex groups operations under the document's tags, in tag order.
// Untagged operations are listed under "other".
func buildDocsIndex(doc *openapi3.T) docsIndex {
	idx := docsIndex{Title: "livemap API"}
	if doc.Info != nil {
		idx.Title = doc.Info.Title
		idx.Version = doc.Info.Version
		idx.Description = strings.TrimSpace(doc.Info.Description)
	}

	byTag := map[string][]docsOperation{}
	if doc.Paths != nil {
		paths := make([]string, 0, doc.Paths.Len())
		for p := range doc.Paths.Map() {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			ops := doc.Paths.Value(p).Operations()
			for _, method := range []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete} {
				op, ok := ops[method]
				if !ok {
					continue
				}
				tags := op.Tags
				if len(tags) == 0 {
					tags = []string{"other"}
				}
				for _, tag := range tags {
					byTag[tag] = append(byTag[tag], docsOperation{Method: method, Path: p, Summary: op.Summary})
				}
			}
		}
	}

	seen := map[string]bool{}
	for _, tag := range doc.Tags {
		seen[tag.Name] = true
		idx.Tags = append(idx.Tags, docsTag{Name: tag.Name, Description: tag.Description, Operations: byTag[tag.Name]})
	}
	var rest []string
	for name := range byTag {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		idx.Tags = append(idx.Tags, docsTag{Name: name, Operations: byTag[name]})
	}
	return idx
}

// SetupDocs registers the API index and Swagger UI at /docs, plus the
// OpenAPI document as YAML and JSON.
func SetupDocs(app *fiber.App) {
	docs := &apiDocs{path: OpenAPIPath}

	app.Get("/docs", func(c *fiber.Ctx) error {
		if err := docs.load(); err != nil {
			return errNotFound(c, "API documentation unavailable")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(docs.page)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if err := docs.load(); err != nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(docs.raw)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if err := docs.load(); err != nil {
			return errNotFound(c, "openapi.json not found")
		}
		return c.JSON(docs.doc)
	})
}
