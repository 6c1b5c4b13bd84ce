package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "NutriPlan Practice API",
        "description": "Dietitian practice API: staff document management and public share links",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Staff authentication"},
        {"name": "Documents", "description": "Patient document management"},
        {"name": "Shares", "description": "Share link management and access logs"},
        {"name": "Public", "description": "Anonymous share link access"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate staff user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/api/v1/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a patient document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "patientId", "in": "formData", "type": "string", "required": true},
                    {"name": "title", "in": "formData", "type": "string", "required": true},
                    {"name": "category", "in": "formData", "type": "string", "required": true},
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Document stored"},
                    "400": {"description": "Invalid payload or file type"}
                }
            },
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "parameters": [
                    {"name": "patient_id", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Document list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get one document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Document metadata"},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Soft-delete a document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Insufficient role"}
                }
            }
        },
        "/api/v1/documents/{id}/shares": {
            "post": {
                "tags": ["Shares"],
                "summary": "Issue a share link",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateShareRequest"}}
                ],
                "responses": {
                    "201": {"description": "Share created"},
                    "404": {"description": "Document not found"}
                }
            }
        },
        "/api/v1/shares": {
            "get": {
                "tags": ["Shares"],
                "summary": "List share links",
                "responses": {
                    "200": {"description": "Share list"}
                }
            }
        },
        "/api/v1/shares/{id}": {
            "patch": {
                "tags": ["Shares"],
                "summary": "Update a share link",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Share updated"}
                }
            },
            "delete": {
                "tags": ["Shares"],
                "summary": "Revoke a share link",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Revoked"},
                    "409": {"description": "Already revoked"}
                }
            }
        },
        "/api/v1/shares/{id}/access-logs": {
            "get": {
                "tags": ["Shares"],
                "summary": "List public access attempts",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Access log list"}
                }
            }
        },
        "/public/documents/{token}": {
            "get": {
                "tags": ["Public"],
                "summary": "Resolve a share token",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Share info with accessibility flags"},
                    "404": {"description": "Unknown token"}
                }
            }
        },
        "/public/documents/{token}/verify": {
            "post": {
                "tags": ["Public"],
                "summary": "Verify a share password",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Password accepted"},
                    "401": {"description": "Invalid password"},
                    "429": {"description": "Too many attempts"}
                }
            }
        },
        "/public/documents/{token}/download": {
            "get": {
                "tags": ["Public"],
                "summary": "Download the shared document",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true},
                    {"name": "password", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Password required or invalid"},
                    "403": {"description": "Revoked, expired or limit reached"},
                    "404": {"description": "Unknown token"}
                }
            }
        },
        "/public/documents/{token}/preview": {
            "get": {
                "tags": ["Public"],
                "summary": "Preview the shared document inline",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true},
                    {"name": "password", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "415": {"description": "File type cannot be previewed"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateShareRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "max_downloads": {"type": "integer"},
                "notes": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
