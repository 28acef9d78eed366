package httpapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Proposal payloads come from external advisors and human operators, so they
// are schema-checked before decoding instead of trusting struct binding.
const proposalSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["ticker", "signal", "assessment"],
  "properties": {
    "ticker": {"type": "string", "minLength": 1, "maxLength": 12},
    "action": {"type": "string", "pattern": "^(?i)(BUY|SELL)$"},
    "quantity": {"type": "integer", "minimum": 0},
    "signal": {
      "type": "object",
      "required": ["direction", "confidence"],
      "properties": {
        "direction": {"type": "string", "pattern": "^(?i)(BUY|SELL|WAIT|HEDGE)$"},
        "confidence": {"type": "number", "minimum": 0, "maximum": 1},
        "regime": {"type": "string"},
        "manual_override": {"type": "boolean"}
      }
    },
    "assessment": {
      "type": "object",
      "required": ["risk_level"],
      "properties": {
        "risk_level": {"type": "string", "pattern": "^(?i)(HIGH|MEDIUM|LOW)$"},
        "sentiment_score": {"type": "number", "minimum": -1, "maximum": 1}
      }
    }
  }
}`

const orderSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["proposal"],
  "properties": {
    "proposal": {"$ref": "proposal.json"},
    "override": {"type": "boolean"}
  }
}`

var (
	proposalSchema *jsonschema.Schema
	orderSchema    *jsonschema.Schema
)

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("proposal.json", strings.NewReader(proposalSchemaJSON)); err != nil {
		panic(fmt.Errorf("add proposal schema: %w", err))
	}
	if err := compiler.AddResource("order.json", strings.NewReader(orderSchemaJSON)); err != nil {
		panic(fmt.Errorf("add order schema: %w", err))
	}
	var err error
	if proposalSchema, err = compiler.Compile("proposal.json"); err != nil {
		panic(fmt.Errorf("compile proposal schema: %w", err))
	}
	if orderSchema, err = compiler.Compile("order.json"); err != nil {
		panic(fmt.Errorf("compile order schema: %w", err))
	}
}

func validatePayload(schema *jsonschema.Schema, raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return schema.Validate(doc)
}
