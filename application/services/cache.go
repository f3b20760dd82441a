package services

import "encoding/json"

// coerceCached converts a cache hit into the destination type. In-process
// caches hand back the stored value; distributed caches hand back a JSON
// round-trip, so values are normalized through marshaling either way.
func coerceCached(value interface{}, dst interface{}) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
