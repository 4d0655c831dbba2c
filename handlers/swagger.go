package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the minyan API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>minjen - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "minjen", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "Firebase ID token" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": { "type": "string" } } },
      "Minyan": { "type": "object", "properties": { "id": { "type": "string" }, "label": { "type": "string" } } },
      "Page": { "type": "object", "properties": { "id": { "type": "string" }, "name": { "type": "string" }, "minyanim": { "type": "array", "items": { "$ref": "#/components/schemas/Minyan" } } } },
      "Participant": { "type": "object", "properties": { "uid": { "type": "string" }, "email": { "type": "string" }, "displayName": { "type": "string" } } },
      "User": { "type": "object", "properties": { "uid": { "type": "string" }, "email": { "type": "string" }, "displayName": { "type": "string" } } }
    }
  },
  "paths": {
    "/api/pages": {
      "get": { "summary": "List pages", "responses": { "200": { "description": "{pages}" } } },
      "post": { "summary": "Create a page (admin)", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "name": { "type": "string" } } } } } }, "responses": { "200": { "description": "{success, page}" }, "400": { "description": "Missing name / Page exists" } } }
    },
    "/api/pages/{id}": {
      "get": { "summary": "Get a page", "responses": { "200": { "description": "{page}" }, "404": { "description": "Page not found" } } },
      "put": { "summary": "Rename a page (admin)", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "name": { "type": "string" } } } } } }, "responses": { "200": { "description": "{success, page}" }, "400": { "description": "Missing name" }, "404": { "description": "Page not found" } } },
      "delete": { "summary": "Delete a page (admin)", "security": [{ "bearer": [] }], "responses": { "200": { "description": "{success}" } } }
    },
    "/api/pages/{id}/minyanim": {
      "post": { "summary": "Add a minyan (admin)", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "minyanId": { "type": "string" }, "label": { "type": "string" } } } } } }, "responses": { "200": { "description": "{success, minyanim}" }, "400": { "description": "Missing minyanId / Minyan exists" }, "404": { "description": "Page not found" } } }
    },
    "/api/pages/{id}/minyanim/{minyanId}": {
      "put": { "summary": "Relabel a minyan (admin)", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "label": { "type": "string" } } } } } }, "responses": { "200": { "description": "{success, minyan}" }, "400": { "description": "Missing label" }, "404": { "description": "Page or minyan not found" } } },
      "delete": { "summary": "Remove a minyan (admin)", "security": [{ "bearer": [] }], "responses": { "200": { "description": "{success, minyanim}" }, "404": { "description": "Page not found" } } }
    },
    "/api/participants": { "get": { "summary": "All rosters keyed by minyan id", "responses": { "200": { "description": "mapping" } } } },
    "/api/register": { "post": { "summary": "Join a minyan", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "minyanId": { "type": "string" }, "user": { "$ref": "#/components/schemas/Participant" } } } } } }, "responses": { "200": { "description": "{success, participants}" }, "400": { "description": "Missing data" } } } },
    "/api/unregister": { "post": { "summary": "Leave a minyan", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "minyanId": { "type": "string" }, "user": { "$ref": "#/components/schemas/Participant" } } } } } }, "responses": { "200": { "description": "{success, participants}" }, "400": { "description": "Missing data" } } } },
    "/api/profile": { "post": { "summary": "Set display name", "security": [{ "bearer": [] }], "requestBody": { "content": { "application/json": { "schema": { "type": "object", "properties": { "uid": { "type": "string" }, "displayName": { "type": "string" } } } } } }, "responses": { "200": { "description": "{success}" }, "400": { "description": "Missing fields" } } } },
    "/api/profile/{uid}": { "get": { "summary": "Get display name", "responses": { "200": { "description": "{displayName}" } } } },
    "/api/users": { "get": { "summary": "All known users (admin)", "security": [{ "bearer": [] }], "responses": { "200": { "description": "{users}" } } } },
    "/api/user-profiles": { "get": { "summary": "All display names (admin)", "security": [{ "bearer": [] }], "responses": { "200": { "description": "{profiles}" } } } },
    "/api/me": { "get": { "summary": "Current identity and admin flag", "security": [{ "bearer": [] }], "responses": { "200": { "description": "{uid, email, displayName, isAdmin}" }, "401": { "description": "not authenticated" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
