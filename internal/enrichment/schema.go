package enrichment

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflectionSchema = generateSchema[reflectionPayload]()

// generateSchema reflects T into a strict JSON schema accepted by structured outputs.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	encoded, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		panic(err)
	}
	enforceStrict(out)
	return out
}

func enforceStrict(schema map[string]any) {
	delete(schema, "$schema")
	delete(schema, "$id")
	properties, _ := schema["properties"].(map[string]any)
	if schema["type"] == "object" {
		schema["additionalProperties"] = false
		required := make([]string, 0, len(properties))
		for name := range properties {
			required = append(required, name)
		}
		if len(required) > 0 {
			schema["required"] = required
		}
	}
	for _, prop := range properties {
		if child, ok := prop.(map[string]any); ok {
			enforceStrict(child)
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		enforceStrict(items)
	}
}
