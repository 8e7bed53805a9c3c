package enrich

import "encoding/json"

func decodeJSON(payload []byte, v any) error {
	return json.Unmarshal(payload, v)
}
