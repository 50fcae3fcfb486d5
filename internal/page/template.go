package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/crimage/internal/log"
)

//go:embed assets/docs.html
var docsTmpl string

const swaggerDist = "https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/"

type Params struct {
	Title      string
	OpenAPIURL string
	CSSURL     string
	BundleURL  string
}

func DefaultParams() Params {
	return Params{
		Title:      "CR-API Premium",
		OpenAPIURL: "/openapi.json",
		CSSURL:     swaggerDist + "swagger-ui.css",
		BundleURL:  swaggerDist + "swagger-ui-bundle.js",
	}
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("docs").Parse(docsTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Debug("rendering docs page")

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
