package plugin

// manifestSchema is the JSON Schema every plugin.json must satisfy.
// Structural validation happens here; semantic checks that a schema cannot
// express (a non-decreasing version range) live in ValidateManifest.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "version", "compatibility", "capabilities"],
  "properties": {
    "name": {
      "type": "string",
      "pattern": "^[a-z][a-z0-9-]*$",
      "minLength": 2,
      "maxLength": 64
    },
    "title": { "type": "string" },
    "version": {
      "type": "string",
      "pattern": "^\\d+\\.\\d+\\.\\d+(-[a-zA-Z0-9.-]+)?$"
    },
    "description": { "type": "string" },
    "author": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "email": { "type": "string" },
        "url": { "type": "string" }
      }
    },
    "compatibility": {
      "type": "object",
      "required": ["quilltapVersion"],
      "properties": {
        "quilltapVersion": { "type": "string", "minLength": 1 },
        "quilltapMaxVersion": { "type": "string" }
      }
    },
    "capabilities": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "string",
        "enum": [
          "chat-provider",
          "image-provider",
          "embedding-provider",
          "theme",
          "hook-extension",
          "api-extension"
        ]
      }
    },
    "permissions": {
      "type": "object",
      "properties": {
        "network": { "type": "array", "items": { "type": "string" } },
        "fileSystem": { "type": "array", "items": { "type": "string" } },
        "userData": { "type": "boolean" },
        "database": { "type": "boolean" }
      }
    },
    "sandboxed": { "type": "boolean" },
    "enabledByDefault": { "type": "boolean" },
    "main": { "type": "string", "minLength": 1 },
    "configSchema": { "type": "object" },
    "defaultConfig": { "type": "object" },
    "hooks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "priority": { "type": "integer" },
          "enabled": { "type": "boolean" }
        }
      }
    },
    "apiRoutes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "methods"],
        "properties": {
          "path": { "type": "string", "pattern": "^/" },
          "methods": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "string",
              "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]
            }
          },
          "requiresAuth": { "type": "boolean" }
        }
      }
    }
  }
}`
