package importer

// definitionSchema describes a workflow definition file. JSON files are
// valid YAML, so both formats are checked against it after decoding.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["workflows"],
  "additionalProperties": false,
  "properties": {
    "workflows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "target_root_id"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 3},
          "status": {"type": "string", "enum": ["active", "paused", "disabled"]},
          "target_root_id": {"type": "string", "minLength": 1},
          "schedule": {"type": "string"},
          "owner": {"type": "string"},
          "channels": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "name"],
              "additionalProperties": false,
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "name": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`
