// Package api embeds the static assets served by chamicore-cosmos.
package api

import _ "embed"

// SwaggerPage is the Swagger UI page template. It expects a SpecURL field.
//
//go:embed swagger.html
var SwaggerPage string
