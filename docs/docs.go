// Package docs holds the swagger document served at /swagger. Regenerate
// with `swag init -g cmd/server/main.go` after changing handler annotations.
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
        "/api/analyze-image": {
            "post": {
                "description": "Describes an uploaded image or an image at a remote URL",
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze an image",
                "parameters": [
                    {"type": "file", "description": "Image file", "name": "image", "in": "formData"},
                    {"type": "string", "description": "Remote image URL", "name": "imageUrl", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.AnalyzeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/shared.APIError"}}
                }
            }
        },
        "/api/analyze-live": {
            "post": {
                "description": "Describes one webcam snapshot. Optional session and sequence headers mark superseded results as stale.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze a live frame",
                "parameters": [
                    {"type": "file", "description": "Snapshot", "name": "image", "in": "formData", "required": true},
                    {"type": "string", "description": "Live session id", "name": "X-Live-Session", "in": "header"},
                    {"type": "integer", "description": "Capture sequence number", "name": "X-Live-Sequence", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.AnalyzeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/shared.APIError"}}
                }
            }
        },
        "/api/analyze-video": {
            "post": {
                "description": "Samples frames from an uploaded video and describes what happens across them",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze a video",
                "parameters": [
                    {"type": "file", "description": "Video file", "name": "video", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.AnalyzeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/shared.APIError"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/shared.APIError"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/health/ready": {
            "get": {
                "description": "Checks ffmpeg, the model provider, Redis and the audit database",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/health.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/health.HealthResponse"}}
                }
            }
        },
        "/health/stats": {
            "get": {
                "description": "Request counters, runtime and host usage, and analysis outcomes over the last 24 hours",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/health.StatsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "analysis.AnalyzeResponse": {
            "type": "object",
            "properties": {
                "result": {"description": "analysis.Result, or the refusal string when the provider filtered the request", "type": "object"},
                "sequence": {"type": "integer"},
                "stale": {"type": "boolean"}
            }
        },
        "analysis.Result": {
            "type": "object",
            "properties": {
                "general_description": {"type": "string", "example": "A cat on a sofa."},
                "number_of_people": {"type": "string", "example": "No people"},
                "objects": {"type": "string", "example": "Cat, Sofa"}
            }
        },
        "shared.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "missing_image"},
                "details": {"type": "object"},
                "error": {"type": "string", "example": "No image or URL provided"}
            }
        },
        "health.ComponentStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "latency_ms": {"type": "integer"},
                "status": {"type": "string"}
            }
        },
        "health.HealthResponse": {
            "type": "object",
            "properties": {
                "components": {"type": "object", "additionalProperties": {"$ref": "#/definitions/health.ComponentStatus"}},
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "version": {"type": "string"}
            }
        },
        "health.StatsResponse": {
            "type": "object",
            "properties": {
                "stats": {"type": "object"},
                "timestamp": {"type": "string"},
                "uptime_seconds": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Vision Backend API",
	Description:      "Describes images, live webcam frames and videos with a vision-capable chat model",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
