package dispatch

import "encoding/json"

// RewriteModel rewrites the top-level "model" field of a JSON response body to
// the gateway's canonical model id, so callers always see the alias they asked
// for rather than whichever backend actually served the request. When
// includeData is set, the same rewrite is applied to every element of a
// list-shaped "data" array (embeddings responses).
//
// Normalization is best-effort: anything that does not parse as a JSON object
// is returned unmodified.
func RewriteModel(body []byte, model string, includeData bool) []byte {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}

	changed := false
	if _, ok := doc["model"].(string); ok {
		doc["model"] = model
		changed = true
	}
	if includeData {
		if items, ok := doc["data"].([]interface{}); ok {
			for _, item := range items {
				entry, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				if _, ok := entry["model"].(string); ok {
					entry["model"] = model
					changed = true
				}
			}
		}
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}
