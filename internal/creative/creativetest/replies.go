package creativetest

import (
	"encoding/json"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/descriptor"
)

// FillReply encodes a fill response. filled may be nil for an absent
// descriptor.
func FillReply(prompt string, filled *descriptor.Descriptor) string {
	var raw json.RawMessage = []byte("null")
	if filled != nil {
		if b, err := filled.Marshal(); err == nil {
			raw = b
		}
	}
	out, _ := json.Marshal(struct {
		Prompt string          `json:"prompt"`
		Filled json.RawMessage `json:"filled_json"`
	}{prompt, raw})
	return string(out)
}

// DiffReply encodes a diff response.
func DiffReply(instructions ...creative.Instruction) string {
	if instructions == nil {
		instructions = []creative.Instruction{}
	}
	out, _ := json.Marshal(struct {
		Instructions []creative.Instruction `json:"instructions"`
	}{instructions})
	return string(out)
}
