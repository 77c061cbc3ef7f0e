package server

import (
	"bytes"
	"fmt"
	"html/template"

	"git.cscs.ch/openchami/chamicore-cosmos/api"
)

var swaggerTemplate = template.Must(template.New("swagger").Parse(api.SwaggerPage))

func renderSwaggerPage(specURL string) ([]byte, error) {
	var buf bytes.Buffer
	if err := swaggerTemplate.Execute(&buf, map[string]any{"SpecURL": specURL}); err != nil {
		return nil, fmt.Errorf("rendering swagger page: %w", err)
	}
	return buf.Bytes(), nil
}
