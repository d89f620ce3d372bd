package step

import "encoding/json"

// Serialize renders a Plan as the plan.json evidence artifact (spec §5).
func Serialize(p Plan) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Parse reverses Serialize.
func Parse(data []byte) (Plan, error) {
	var p Plan
	err := json.Unmarshal(data, &p)
	return p, err
}
