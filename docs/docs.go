// Package docs holds the generated Swagger specification for the Query
// API. Normally produced by `swag init` from the `@...` annotations on
// cmd/queryapi/main.go and the queryapi handlers; committed here by hand
// in the same shape swag itself emits, since this module's build never
// invokes the swag CLI.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/search": {
            "get": {
                "description": "Filtered, paginated, newest-first search over the indexed corpus",
                "produces": ["application/json"],
                "tags": ["search"],
                "summary": "Search articles",
                "parameters": [
                    {"type": "string", "name": "query", "in": "query"},
                    {"type": "string", "name": "topics", "in": "query"},
                    {"type": "string", "name": "sources", "in": "query"},
                    {"type": "string", "name": "languages", "in": "query"},
                    {"type": "string", "name": "sentiment", "in": "query"},
                    {"type": "string", "name": "date_from", "in": "query"},
                    {"type": "string", "name": "date_to", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/articles/{id}": {
            "get": {
                "description": "Fetch a single enriched article by id",
                "produces": ["application/json"],
                "tags": ["articles"],
                "summary": "Get article",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/articles/latest": {
            "get": {
                "description": "Most recent articles, optionally filtered by source and language",
                "produces": ["application/json"],
                "tags": ["articles"],
                "summary": "Latest articles",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "source", "in": "query"},
                    {"type": "string", "name": "language", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/stats": {
            "get": {
                "description": "Corpus-wide counts by source, language, sentiment, and day",
                "produces": ["application/json"],
                "tags": ["stats"],
                "summary": "Corpus statistics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Newsstream Query API",
	Description:      "Read-only search API over the enriched news article corpus.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
