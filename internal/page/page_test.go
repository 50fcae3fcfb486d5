package page

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	var g Templator
	html, err := g.Template(context.Background(), DefaultParams())
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<title>CR-API Premium</title>")
	assert.Contains(t, out, "https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css")
	assert.Contains(t, out, "swagger-ui-bundle.js")
	assert.Contains(t, out, "defaultModelsExpandDepth: -1")
	assert.Contains(t, out, `openapi.json`)
}

func TestOpenAPI(t *testing.T) {
	doc := OpenAPI([]string{"CR-Avatar", "CR-Flux"}, "CR-Flux", false)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var parsed struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]struct {
			Get struct {
				Parameters []struct {
					Name   string `json:"name"`
					Schema struct {
						Enum    []string `json:"enum"`
						Default string   `json:"default"`
					} `json:"schema"`
				} `json:"parameters"`
			} `json:"get"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.Equal(t, Title, parsed.Info.Title)
	assert.NotContains(t, parsed.Paths, "/feed.rss")
	params := parsed.Paths["/v1/generate"].Get.Parameters
	require.Len(t, params, 2)
	assert.Equal(t, "model", params[1].Name)
	assert.Equal(t, []string{"CR-Avatar", "CR-Flux"}, params[1].Schema.Enum)
	assert.Equal(t, "CR-Flux", params[1].Schema.Default)

	assert.Contains(t, OpenAPI(nil, "", true)["paths"], "/feed.rss")
}
