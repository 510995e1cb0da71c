package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DocuFlow Intake API",
        "description": "Document collection and processing pipeline for client intake",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Documents", "description": "Document store and versioning"},
        {"name": "Processing", "description": "OCR, analysis and auto-fill pipeline"},
        {"name": "Checklist", "description": "Required-document tracking per client"},
        {"name": "Alerts", "description": "Operator alerts"}
    ],
    "paths": {
        "/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "clientId", "in": "formData", "type": "string", "required": true},
                    {"name": "category", "in": "formData", "type": "string", "required": true},
                    {"name": "uploadedBy", "in": "formData", "type": "string", "required": true},
                    {"name": "isSensitive", "in": "formData", "type": "boolean"},
                    {"name": "parentDocumentId", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid upload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Linked to a checklist item", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/review": {
            "post": {
                "tags": ["Documents"],
                "summary": "Record a reviewer sign-off",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Document not processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/download-url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a signed download URL",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/download/{token}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File contents"},
                    "400": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/process": {
            "post": {
                "tags": ["Processing"],
                "summary": "Run the processing pipeline on a document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ProcessRequest"}}
                ],
                "responses": {
                    "200": {"description": "Terminal run result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already processing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/reprocess": {
            "post": {
                "tags": ["Processing"],
                "summary": "Re-run the pipeline on a failed document",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ReprocessRequest"}}
                ],
                "responses": {
                    "200": {"description": "Terminal run result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not reprocessable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/status": {
            "get": {
                "tags": ["Processing"],
                "summary": "Get live processing status",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/results": {
            "get": {
                "tags": ["Processing"],
                "summary": "List per-stage results",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clients/{clientId}/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List a client's documents",
                "parameters": [
                    {"name": "clientId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clients/{clientId}/checklist": {
            "get": {
                "tags": ["Checklist"],
                "summary": "Get a client's checklist",
                "parameters": [
                    {"name": "clientId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Checklist"],
                "summary": "Seed a client's required-document checklist",
                "parameters": [
                    {"name": "clientId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SeedChecklistRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/checklist/{id}": {
            "put": {
                "tags": ["Checklist"],
                "summary": "Update a checklist item's completion state",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateChecklistItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Linked document not processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clients/{clientId}/reminders": {
            "post": {
                "tags": ["Checklist"],
                "summary": "Send reminders for outstanding checklist items",
                "parameters": [
                    {"name": "clientId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clients/{clientId}/session": {
            "get": {
                "tags": ["Checklist"],
                "summary": "Get a client's collection session",
                "parameters": [
                    {"name": "clientId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts": {
            "get": {
                "tags": ["Alerts"],
                "summary": "List active alerts",
                "parameters": [
                    {"name": "clientId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/{id}/acknowledge": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Acknowledge an alert",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcknowledgeAlertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Alert already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/alerts/{id}/resolve": {
            "post": {
                "tags": ["Alerts"],
                "summary": "Resolve an alert",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveAlertRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ReviewDocumentRequest": {
            "type": "object",
            "required": ["reviewerId"],
            "properties": {
                "reviewerId": {"type": "string"}
            }
        },
        "ProcessRequest": {
            "type": "object",
            "properties": {
                "skipOcr": {"type": "boolean"},
                "skipAnalysis": {"type": "boolean"},
                "skipAutoFill": {"type": "boolean"},
                "priority": {"type": "string"}
            }
        },
        "ReprocessRequest": {
            "type": "object",
            "properties": {
                "skipOcr": {"type": "boolean"},
                "skipAnalysis": {"type": "boolean"},
                "skipAutoFill": {"type": "boolean"},
                "priority": {"type": "string"},
                "force": {"type": "boolean"}
            }
        },
        "SeedChecklistRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ChecklistItemSpec"}
                }
            }
        },
        "ChecklistItemSpec": {
            "type": "object",
            "required": ["documentType", "category"],
            "properties": {
                "documentType": {"type": "string"},
                "category": {"type": "string"},
                "description": {"type": "string"},
                "isRequired": {"type": "boolean"},
                "priority": {"type": "string", "enum": ["low", "medium", "high"]},
                "dueDate": {"type": "string", "format": "date-time"}
            }
        },
        "UpdateChecklistItemRequest": {
            "type": "object",
            "properties": {
                "isCompleted": {"type": "boolean"},
                "documentId": {"type": "string"}
            }
        },
        "AcknowledgeAlertRequest": {
            "type": "object",
            "required": ["acknowledgedBy"],
            "properties": {
                "acknowledgedBy": {"type": "string"}
            }
        },
        "ResolveAlertRequest": {
            "type": "object",
            "required": ["note"],
            "properties": {
                "note": {"type": "string"}
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
