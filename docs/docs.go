// Package docs registers the OpenAPI document served under /swagger.
// Regenerate the paths with: swag init -g cmd/main.go -o docs
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
    "securityDefinitions": {
        "CookieAuth": {"type": "apiKey", "in": "header", "name": "Cookie"},
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "auth"}, {"name": "users"}, {"name": "organizers"}, {"name": "tournaments"},
        {"name": "applicants"}, {"name": "admin"}, {"name": "live"}
    ],
    "paths": {
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a player account", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}, "409": {"description": "Email already registered"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Log in as a player", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid email or password"}}}},
        "/auth/logout": {"post": {"tags": ["auth"], "summary": "Clear the session cookie", "responses": {"200": {"description": "OK"}}}},
        "/auth/is-auth": {"get": {"tags": ["auth"], "summary": "Check the current session", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthenticated"}}}},
        "/auth/send-verify-otp": {"post": {"tags": ["auth"], "summary": "Email an account verification code", "responses": {"200": {"description": "OK"}, "409": {"description": "Already verified"}, "429": {"description": "Rate limited"}}}},
        "/auth/verify-account": {"post": {"tags": ["auth"], "summary": "Verify the account with the emailed code", "responses": {"200": {"description": "OK"}, "410": {"description": "Code expired"}, "422": {"description": "Invalid code"}}}},
        "/auth/send-reset-otp": {"post": {"tags": ["auth"], "summary": "Email a password reset code", "responses": {"200": {"description": "OK"}, "404": {"description": "User not found"}, "429": {"description": "Rate limited"}}}},
        "/auth/reset-password": {"post": {"tags": ["auth"], "summary": "Reset the password with the emailed code", "responses": {"200": {"description": "OK"}, "410": {"description": "Code expired"}, "422": {"description": "Invalid code"}}}},
        "/user/data": {"get": {"tags": ["users"], "summary": "Current player account", "responses": {"200": {"description": "OK"}}}},
        "/organizers/register": {"post": {"tags": ["organizers"], "summary": "Register an organizer account", "consumes": ["multipart/form-data"], "responses": {"201": {"description": "Created"}}}},
        "/organizers/login": {"post": {"tags": ["organizers"], "summary": "Log in as an organizer", "responses": {"200": {"description": "OK"}}}},
        "/organizers/profile": {
            "get": {"tags": ["organizers"], "summary": "Current organizer profile", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["organizers"], "summary": "Update the organizer profile", "consumes": ["multipart/form-data"], "responses": {"200": {"description": "OK"}}}
        },
        "/tournaments": {
            "get": {"tags": ["tournaments"], "summary": "List tournaments", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tournaments"], "summary": "Create a tournament", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}, "403": {"description": "Forbidden"}}}
        },
        "/tournaments/{id}": {
            "get": {"tags": ["tournaments"], "summary": "Tournament details", "parameters": [{"type": "string", "description": "Tournament ID or slug", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "patch": {"tags": ["tournaments"], "summary": "Edit a tournament", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Concurrent edit"}}}
        },
        "/tournaments/{id}/registration": {"patch": {"tags": ["tournaments"], "summary": "Open or close registration manually", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/organizers": {"post": {"tags": ["tournaments"], "summary": "Add a co-organizer or change their role", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/organizers/{userID}": {"delete": {"tags": ["tournaments"], "summary": "Remove a co-organizer", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "userID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/applicants": {
            "get": {"tags": ["applicants"], "summary": "List applications", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["applicants"], "summary": "Apply to a tournament as a team", "consumes": ["multipart/form-data"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Already applied or tournament full"}, "423": {"description": "Registration closed"}}}
        },
        "/tournaments/{id}/applicants/export": {"get": {"tags": ["applicants"], "summary": "Download applications as XLSX", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/applicants/{applicantID}": {"get": {"tags": ["applicants"], "summary": "Application details", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "applicantID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/applicants/{applicantID}/status": {"patch": {"tags": ["applicants"], "summary": "Approve or reject an application", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "applicantID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Tournament full or invalid transition"}}}},
        "/tournaments/{id}/applicants/{applicantID}/payment": {"patch": {"tags": ["applicants"], "summary": "Mark the payment proof as checked", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "applicantID", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/tournaments/{id}/teams": {"get": {"tags": ["applicants"], "summary": "Approved teams of a tournament", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/admin/organizers": {"get": {"tags": ["admin"], "summary": "List organizer accounts", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}},
        "/admin/users": {"get": {"tags": ["admin"], "summary": "List player accounts", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Tournament Hub API",
	Description:      "Tournament registration: accounts, organizers, tournaments and team applications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
