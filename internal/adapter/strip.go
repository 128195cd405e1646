package adapter

import (
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// deleteJSONKey removes a top-level JSON key, tolerating malformed input by
// leaving the body unchanged and logging (strip_params is best-effort
// cleanup, never a hard failure path).
func deleteJSONKey(body []byte, key string) []byte {
	out, err := sjson.DeleteBytes(body, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("adapter: strip_params: failed to delete key")
		return body
	}
	return out
}
