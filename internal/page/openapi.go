package page

const (
	Title       = "CR-IMAGE-ULTIMATE PRO"
	Description = "Image generation proxy with smart caching."
	Version     = "5.1.0"
)

type object = map[string]any

func errorBody(key string) object {
	return object{
		"application/json": object{
			"schema": object{
				"type":       "object",
				"properties": object{key: object{"type": "string"}},
			},
		},
	}
}

func jsonOK(description string) object {
	return object{
		"200": object{
			"description": description,
			"content":     object{"application/json": object{"schema": object{"type": "object"}}},
		},
	}
}

// OpenAPI describes the HTTP surface for the docs page.
func OpenAPI(models []string, defaultModel string, feed bool) object {
	paths := object{
		"/": object{"get": object{
			"tags":      []string{"General"},
			"summary":   "Service index",
			"responses": jsonOK("Endpoints and available models"),
		}},
		"/health": object{"get": object{
			"tags":      []string{"DevOps"},
			"summary":   "Health and runtime stats",
			"responses": jsonOK("Health report"),
		}},
		"/v1/generate": object{"get": object{
			"tags":    []string{"Production"},
			"summary": "Generate an image",
			"parameters": []object{
				{
					"name":     "prompt",
					"in":       "query",
					"required": true,
					"schema":   object{"type": "string", "minLength": 2},
					"example":  "Cyberpunk city with CR-Neon signs",
				},
				{
					"name":        "model",
					"in":          "query",
					"required":    false,
					"description": "Backend model",
					"schema":      object{"type": "string", "enum": models, "default": defaultModel},
				},
			},
			"responses": object{
				"200": object{
					"description": "Generated image",
					"content":     object{"image/jpeg": object{"schema": object{"type": "string", "format": "binary"}}},
				},
				"400": object{"description": "Invalid model name", "content": errorBody("detail")},
				"403": object{"description": "Prompt contains restricted content", "content": errorBody("detail")},
				"422": object{"description": "Validation error"},
				"500": object{"description": "Upstream transport fault", "content": errorBody("error")},
				"502": object{"description": "Backend returned a non-200 status", "content": errorBody("error")},
			},
		}},
	}
	if feed {
		paths["/feed.rss"] = object{"get": object{
			"tags":    []string{"General"},
			"summary": "RSS feed of archived images",
			"responses": object{"200": object{
				"description": "RSS 2.0 document",
				"content":     object{"application/rss+xml": object{"schema": object{"type": "string"}}},
			}},
		}}
	}

	return object{
		"openapi": "3.0.3",
		"info": object{
			"title":       Title,
			"description": Description,
			"version":     Version,
		},
		"paths": paths,
	}
}
