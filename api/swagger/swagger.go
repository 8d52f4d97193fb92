package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Emploi API",
        "description": "Timetable generation and publication service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and token issuing"},
        {"name": "Timetables", "description": "Template generation and lifecycle"},
        {"name": "Slots", "description": "Manual slot edits and locking"},
        {"name": "Views", "description": "Class and teacher projections"},
        {"name": "Exports", "description": "Timetable downloads"}
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
                    "200": {"description": "Access token issued", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a timetable draft for one class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Draft template created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "422": {"description": "Infeasible schedule or no eligible teacher", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables/generate-all": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate timetables for every active class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateAllRequest"}}
                ],
                "responses": {
                    "200": {"description": "Per-class outcomes", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List template versions for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Template versions, newest first", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables/{id}/slots": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List the slots of a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Slot projections", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Template not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables/{id}/publish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Publish a draft template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Template published", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "Already published", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a draft template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Template is not a draft", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/slots/{id}": {
            "patch": {
                "tags": ["Slots"],
                "summary": "Edit a slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSlotRequest"}}
                ],
                "responses": {
                    "200": {"description": "Slot updated", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "Placement invariant violated", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/slots/{id}/lock": {
            "post": {
                "tags": ["Slots"],
                "summary": "Lock a slot against regeneration",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Locked"}
                }
            }
        },
        "/slots/{id}/unlock": {
            "post": {
                "tags": ["Slots"],
                "summary": "Release a locked slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Unlocked"}
                }
            }
        },
        "/classes/{id}/timetable/active": {
            "get": {
                "tags": ["Views"],
                "summary": "Resolve the active timetable for a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "asOf", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "Active template with slots, null when none", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/classes/{id}/timetable/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the active timetable of a class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "required": true},
                    {"name": "asOf", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "Rendered timetable file"},
                    "404": {"description": "No active timetable", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/teachers/{id}/slots/day": {
            "get": {
                "tags": ["Views"],
                "summary": "Teacher slots on a concrete date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "format": "date", "required": true}
                ],
                "responses": {
                    "200": {"description": "Slots ordered by start time", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/teachers/{id}/slots/week": {
            "get": {
                "tags": ["Views"],
                "summary": "Teacher slots over seven days as dated events",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "start", "in": "query", "type": "string", "format": "date", "required": true}
                ],
                "responses": {
                    "200": {"description": "Dated events ordered by day then start", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/teachers/{id}/slots/year": {
            "get": {
                "tags": ["Views"],
                "summary": "Teacher slots across all classes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Slots of each class's most recent template", "schema": {"$ref": "#/definitions/Envelope"}}
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
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["classId", "periodStart", "periodEnd", "effectiveFrom"],
            "properties": {
                "classId": {"type": "string"},
                "periodStart": {"type": "string", "format": "date"},
                "periodEnd": {"type": "string", "format": "date"},
                "effectiveFrom": {"type": "string", "format": "date"}
            }
        },
        "GenerateAllRequest": {
            "type": "object",
            "required": ["periodStart", "periodEnd", "effectiveFrom"],
            "properties": {
                "periodStart": {"type": "string", "format": "date"},
                "periodEnd": {"type": "string", "format": "date"},
                "effectiveFrom": {"type": "string", "format": "date"}
            }
        },
        "UpdateSlotRequest": {
            "type": "object",
            "properties": {
                "dayOfWeek": {"type": "integer", "minimum": 1, "maximum": 6},
                "startTime": {"type": "string", "example": "08:00"},
                "endTime": {"type": "string", "example": "09:00"},
                "teacherId": {"type": "string"},
                "roomId": {"type": "string"}
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
        "Envelope": {
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
