// Package api carries the OpenAPI 3.1 description of the kansoku HTTP API.
// The server publishes it at GET /openapi.yaml.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
