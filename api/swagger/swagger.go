package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Clearance API",
        "description": "Student clearance workflow engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Clearance", "description": "Clearance request lifecycle"},
        {"name": "Cases", "description": "Per-unit review cases"},
        {"name": "Units", "description": "Approving units and period settings"},
        {"name": "Certificates", "description": "Clearance certificate rendering"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance/requests": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Clearance"],
                "summary": "Open a clearance request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClearanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "An active request already exists"}
                }
            }
        },
        "/clearance/requests/{id}": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Get a clearance request with its cases",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance/requests/{id}/withdraw": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Withdraw a clearance request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WithdrawRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Request already closed"}
                }
            }
        },
        "/clearance/requests/{id}/history": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Request status history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/requests/{id}/recompute": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Recompute the aggregate request status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/cases/queue": {
            "get": {
                "tags": ["Cases"],
                "summary": "Review queue for the caller's unit",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/cases/{id}": {
            "get": {
                "tags": ["Cases"],
                "summary": "Get a review case with its checklist",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/cases/{id}/submit": {
            "post": {
                "tags": ["Cases"],
                "summary": "Submit a case for review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitCaseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Stale expected status"},
                    "422": {"description": "Requirements not satisfied"}
                }
            }
        },
        "/clearance/cases/{id}/decision": {
            "post": {
                "tags": ["Cases"],
                "summary": "Decide a submitted case",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecideCaseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Stale expected status"}
                }
            }
        },
        "/clearance/cases/{id}/history": {
            "get": {
                "tags": ["Cases"],
                "summary": "Case status history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/cases/{id}/requirements/{requirementId}/evidence": {
            "get": {
                "tags": ["Cases"],
                "summary": "Signed evidence download link",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "put": {
                "tags": ["Cases"],
                "summary": "Upload requirement evidence",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "423": {"description": "Case is locked under review"}
                }
            },
            "delete": {
                "tags": ["Cases"],
                "summary": "Clear requirement evidence",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/clearance/cases/{id}/requirements/{requirementId}/acknowledgment": {
            "put": {
                "tags": ["Cases"],
                "summary": "Acknowledge a requirement",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/units": {
            "get": {
                "tags": ["Units"],
                "summary": "List active approving units",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/units/{type}/{id}/requirements": {
            "get": {
                "tags": ["Units"],
                "summary": "List a unit's active requirements",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/settings/period": {
            "get": {
                "tags": ["Units"],
                "summary": "Active clearance period settings",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "No period configured"}
                }
            }
        },
        "/certificates": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Queue a clearance certificate render",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCertificateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued"},
                    "412": {"description": "Request is not completed"}
                }
            }
        },
        "/certificates/{id}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Certificate job status",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateClearanceRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "type": {"type": "string", "enum": ["PERIOD_END", "TRANSFER", "GRADUATION"]},
                "period": {"type": "string"}
            }
        },
        "WithdrawRequest": {
            "type": "object",
            "required": ["remarks"],
            "properties": {
                "remarks": {"type": "string"}
            }
        },
        "SubmitCaseRequest": {
            "type": "object",
            "required": ["expected_status"],
            "properties": {
                "expected_status": {"type": "string", "enum": ["PENDING", "REJECTED", "ON_HOLD"]}
            }
        },
        "DecideCaseRequest": {
            "type": "object",
            "required": ["outcome", "expected_status"],
            "properties": {
                "outcome": {"type": "string", "enum": ["APPROVED", "REJECTED", "ON_HOLD"]},
                "remarks": {"type": "string"},
                "expected_status": {"type": "string"}
            }
        },
        "CreateCertificateRequest": {
            "type": "object",
            "required": ["request_id", "format"],
            "properties": {
                "request_id": {"type": "string"},
                "format": {"type": "string", "enum": ["pdf", "csv"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
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
