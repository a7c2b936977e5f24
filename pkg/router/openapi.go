package router

import (
	"os"

	"ai-scam-shield-demo/backend/pkg/validator"
)

// AddOpenAPIValidation adds OpenAPI schema validation in front of the
// sanitization stages. Absence of the schema file is not an error; the
// declarative rules still apply.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "failed to initialize OpenAPI validator")
		return
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}
