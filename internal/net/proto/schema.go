package proto

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Messages groups every wire message so a single schema documents the
// protocol.
type Messages struct {
	Client   ClientMessage `json:"client" jsonschema:"description=Inbound frame; exactly one key"`
	Welcome  Welcome       `json:"welcome" jsonschema:"description=Sent once after connecting"`
	Snapshot Snapshot      `json:"snapshot" jsonschema:"description=Broadcast every tick"`
	Death    Death         `json:"death" jsonschema:"description=Broadcast when a player leaves the world"`
}

// Schema reflects the protocol JSON schema.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Messages))
	schema.Title = "Swingy Arena Protocol"
	schema.Description = fmt.Sprintf("Websocket messages, protocol version %d", Version)
	return schema
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
