package http

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// syncPath is documented only when the server registers it.
const syncPath = "/api/v1/sync"

// renderOpenAPI converts the embedded YAML document to JSON and drops the
// paths this server does not serve.
func renderOpenAPI(withSync bool) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi.yaml: %w", err)
	}

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("openapi.yaml: paths is %T, want a mapping", doc["paths"])
	}
	if !withSync {
		delete(paths, syncPath)
	}

	if err := checkStringKeys(doc, "$"); err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// checkStringKeys rejects mappings with non-string keys, which JSON cannot
// represent. yaml.v3 decodes those as map[any]any.
func checkStringKeys(v any, at string) error {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			if err := checkStringKeys(value, at+"."+key); err != nil {
				return err
			}
		}
	case map[any]any:
		return fmt.Errorf("openapi.yaml: %s has non-string keys", at)
	case []any:
		for i, value := range v {
			if err := checkStringKeys(value, fmt.Sprintf("%s[%d]", at, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// openAPIDocument renders the document once per server.
func (s *Server) openAPIDocument() ([]byte, error) {
	s.openAPIOnce.Do(func() {
		s.openAPI, s.openAPIErr = renderOpenAPI(s.syncService != nil)
	})
	return s.openAPI, s.openAPIErr
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Sweeper API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// handleSwaggerUI serves the Swagger UI for the embedded specification.
func (s *Server) handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(swaggerUIHTML))
}
