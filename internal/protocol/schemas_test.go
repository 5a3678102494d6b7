package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("sample should not validate")
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	intentSchema := compile("intent.schema.json")
	ackSchema := compile("ack.schema.json")
	changeSchema := compile("change.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "campaign_id":"c1",
	  "viewer_id":"alice",
	  "viewer_kind":"player"
	}`), &hello)
	validate(helloSchema, hello)

	var helloByCode any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "join_code":"ab12cd34",
	  "viewer_id":"alice"
	}`), &helloByCode)
	validate(helloSchema, helloByCode)

	var helloNoRoute any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "viewer_id":"alice"
	}`), &helloNoRoute)
	reject(helloSchema, helloNoRoute)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"s1",
	  "campaign_id":"c1",
	  "viewer_id":"alice",
	  "viewer_kind":"player",
	  "grid_params":{"cell_size_px":48,"default_grid_width":10,"default_grid_height":6},
	  "owners":[{"owner_id":"alice","name":"Alice","kind":"player"}]
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var intent any
	_ = json.Unmarshal([]byte(`{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "id":"i1",
	  "op":"MOVE_ITEM",
	  "owner_id":"alice",
	  "item_id":"sword",
	  "to_container_id":"pack",
	  "x":2,
	  "y":1
	}`), &intent)
	validate(intentSchema, intent)

	var adjust any
	_ = json.Unmarshal([]byte(`{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "id":"i3",
	  "op":"ADJUST_WALLET",
	  "owner_id":"alice",
	  "delta":-120
	}`), &adjust)
	validate(intentSchema, adjust)

	var badIntent any
	_ = json.Unmarshal([]byte(`{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "id":"i2",
	  "op":"TELEPORT"
	}`), &badIntent)
	reject(intentSchema, badIntent)

	var ack any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACK",
	  "protocol_version":"1.0",
	  "ref":"i1",
	  "ok":false,
	  "code":"E_COLLISION",
	  "message":"target cells are occupied"
	}`), &ack)
	validate(ackSchema, ack)

	var change any
	_ = json.Unmarshal([]byte(`{
	  "type":"CHANGE",
	  "protocol_version":"1.0",
	  "path":"campaigns/c1/inventories/alice/containers/pack",
	  "doc":{"gridWidth":10},
	  "rev":42
	}`), &change)
	validate(changeSchema, change)
}
