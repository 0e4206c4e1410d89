// Package docs holds the OpenAPI description of the ingestion API.
// Regenerate with: swag init -g internal/api/routes.go -o internal/docs --outputTypes go
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
        "/v1/ingestions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Persists a Pending record, starts the job on the worker and returns the worker's status.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Create an ingestion job",
                "parameters": [
                    {
                        "description": "optional id and ingestion metadata",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/job.CreateRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/api.createResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Get the cached ingestion record",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.Job"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Synchronises the cached status with the worker. When the worker is unreachable the cached status is returned with stale set.",
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Get the job status from the worker",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.StatusResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Cancel a job",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.ControlResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/pause": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Pause a job",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.ControlResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/resume": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Resume a paused job",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.ControlResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/retry": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Retry a failed job",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/job.ControlResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/v1/ingestions/{id}/embedding": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Get the embedding vector for a job",
                "parameters": [{"type": "string", "description": "job id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.embeddingResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.createResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"$ref": "#/definitions/job.Status"}
            }
        },
        "api.embeddingResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "embedding": {"type": "array", "items": {"type": "number"}}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "job.CreateRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "payload": {"type": "object"}
            }
        },
        "job.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"$ref": "#/definitions/job.Status"},
                "payload": {"type": "object"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "job.Status": {
            "type": "string",
            "enum": ["Pending", "Processing", "Completed", "Failed", "Cancelled", "Paused", "Retried"]
        },
        "job.StatusResult": {
            "type": "object",
            "properties": {
                "status": {"$ref": "#/definitions/job.Status"},
                "stale": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "job.RemoteSync": {
            "type": "object",
            "properties": {
                "synced": {"type": "boolean"},
                "status": {"$ref": "#/definitions/job.Status"},
                "error": {"type": "string"}
            }
        },
        "job.ControlResult": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"$ref": "#/definitions/job.Status"},
                "payload": {"type": "object"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "remote": {"$ref": "#/definitions/job.RemoteSync"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ingestion Service API",
	Description:      "Creates and controls asynchronous ingestion jobs run by a remote ingestion worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
