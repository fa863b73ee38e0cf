// Package api carries the hand-maintained OpenAPI document of the HTTP surface.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
