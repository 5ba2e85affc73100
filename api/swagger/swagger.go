package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ABA Scheduler API",
        "description": "Auto-scheduling engine for ABA therapy sessions",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scheduler", "description": "Schedule generation, proposals and commits"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/schedule/generate": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Generate a schedule proposal",
                "parameters": [
                    {"name": "mode", "in": "query", "type": "string", "enum": ["sync", "async"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/proposals/{id}": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Fetch a schedule proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/proposals/{id}/commit": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Commit a schedule proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Proposal not committable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedule/cache/stats": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Compatibility cache statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ConstraintConfig": {
            "type": "object",
            "properties": {
                "minBreakMinutes": {"type": "integer"},
                "maxConsecutiveSessions": {"type": "integer"},
                "maxDailyHours": {"type": "number"},
                "maxWeeklyHours": {"type": "number"}
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "horizonStart": {"type": "string", "example": "2026-09-07"},
                "horizonEnd": {"type": "string", "example": "2026-09-14"},
                "serviceType": {"type": "string", "example": "direct_therapy"},
                "resolutionMinutes": {"type": "integer"},
                "sessionMinutes": {"type": "integer"},
                "roundToGrid": {"type": "boolean"},
                "maxSessions": {"type": "integer"},
                "constraints": {"$ref": "#/definitions/ConstraintConfig"}
            },
            "required": ["horizonStart", "horizonEnd", "serviceType"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
