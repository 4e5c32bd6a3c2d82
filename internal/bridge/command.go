package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Action selects the instruction kind of a command message.
type Action string

const (
	ActionInsertOrder Action = "io"
	ActionCancelOrder Action = "del"
)

// Record type markers, first field of every instruction tuple.
const (
	RecordInsert = "O"
	RecordCancel = "C"
)

// Tuple field counts. Insert:
// (O, custId, counterType, accountId, "", ticker, action, qty, price, kind)
// Cancel: (C, "", counterType, accountId, exchangeOrderId)
const (
	InsertTupleLen = 10
	CancelTupleLen = 5
)

// Command is one trade-server-to-connector message carrying a batch of
// positional instruction tuples.
type Command struct {
	Action Action     `json:"action"`
	Data   [][]string `json:"data"`
}

func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func DecodeCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return Command{}, fmt.Errorf("decoding command failed: %w", err)
	}
	return c, nil
}

const commandSchemaJSON = `{
  "type": "object",
  "required": ["action", "data"],
  "properties": {
    "action": {"enum": ["io", "del"]},
    "data": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "array",
        "minItems": 5,
        "maxItems": 10,
        "items": {"type": "string"}
      }
    }
  }
}`

var commandSchema = jsonschema.MustCompileString("command.json", commandSchemaJSON)

// ValidateCommand checks an inbound raw command message against the
// protocol schema before it is relayed to the instruction writer.
func ValidateCommand(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("command is not valid json: %w", err)
	}
	if err := commandSchema.Validate(doc); err != nil {
		return fmt.Errorf("command rejected by schema: %w", err)
	}
	return nil
}
