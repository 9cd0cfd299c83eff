package mapdoc

import "github.com/invopop/jsonschema"

// Schema reflects the map document contract into a JSON Schema so map
// authoring tools can validate documents before the server ever sees them.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "spin-snowball map"
	schema.Description = "Validates default_map.json world descriptions"
	return schema
}
