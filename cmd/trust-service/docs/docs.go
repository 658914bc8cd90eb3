// Package docs registers the OpenAPI description served under /swagger. Regenerate with
// `swag init -g cmd/trust-service/main.go -o cmd/trust-service/docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/rules": {
            "get": {"tags": ["rules"], "summary": "List trust rules", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["rules"], "summary": "Create a trust rule", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/rules/evaluate": {
            "post": {"tags": ["rules"], "summary": "Evaluate all rules against an event", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/rules/validate": {
            "post": {"tags": ["rules"], "summary": "Validate a condition", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/rules/{id}": {
            "get": {"tags": ["rules"], "summary": "Get a trust rule", "produces": ["application/json"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/rules/{id}/status": {
            "put": {"tags": ["rules"], "summary": "Activate or deactivate a rule", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/rules/{id}/evaluate": {
            "post": {"tags": ["rules"], "summary": "Evaluate one rule against an event", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/anchoring/batches": {
            "get": {"tags": ["anchoring"], "summary": "List anchor batches", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["anchoring"], "summary": "Build and anchor a batch for a closed window", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/anchoring/batches/{id}": {
            "get": {"tags": ["anchoring"], "summary": "Get an anchor batch", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/anchoring/batches/{id}/retry": {
            "post": {"tags": ["anchoring"], "summary": "Resubmit a pending or failed batch root", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}}
        },
        "/proofs/{logId}": {
            "get": {"tags": ["proofs"], "summary": "Inclusion proof for an audit log", "parameters": [{"type": "string", "name": "logId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/proofs/verify": {
            "post": {"tags": ["proofs"], "summary": "Verify an inclusion proof", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/audit/logs": {
            "get": {"tags": ["audit"], "summary": "List audit logs in a window", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["audit"], "summary": "Append an audit log entry", "responses": {"201": {"description": "Created"}}}
        },
        "/audit/logs/{id}": {
            "get": {"tags": ["audit"], "summary": "Get an audit log entry", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/ledger/events": {
            "post": {"tags": ["ledger"], "summary": "Create a ledger event", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/ledger/events/{id}": {
            "get": {"tags": ["ledger"], "summary": "Get a ledger event", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/ledger/events/{id}/allocations": {
            "get": {"tags": ["ledger"], "summary": "List allocations of a ledger event", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/plugins": {
            "get": {"tags": ["plugins"], "summary": "List registered plugins", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["plugins"], "summary": "Register a plugin", "consumes": ["application/json"], "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/plugins/{id}": {
            "get": {"tags": ["plugins"], "summary": "Get a plugin", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/plugins/{id}/enabled": {
            "put": {"tags": ["plugins"], "summary": "Enable or disable a plugin", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Trust Service API",
	Description:      "Trust rules evaluation, audit log anchoring and Merkle inclusion proofs",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
