package validator

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI specification. It
// acts as an optional structural gate ahead of content sanitization: shape
// violations are rejected before any signature matching runs.
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator creates a new OpenAPI validator from a schema file
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	swagger, router, err := loadSchema(schemaPath)
	if err != nil {
		return nil, err
	}

	return &OpenAPIValidator{
		swagger:    swagger,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

func loadSchema(path string) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}

	if err := swagger.Validate(loader.Context); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return swagger, router, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	swagger, router, err := loadSchema(v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.swagger = swagger
	v.router = router
	return nil
}

// Middleware returns a Gin middleware that validates requests against the
// schema. Routes absent from the schema pass through unvalidated.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				MultiError: false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		c.Next()
	}
}
