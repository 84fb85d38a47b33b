package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Request is one logical call to the upstream API.
type Request struct {
	Action    string
	EntityIDs []string
	Cursor    int64
	Params    map[string]string

	// Fresh skips the cache lookup. The response is still cached.
	Fresh bool
	// NoCache disables both lookup and storage.
	NoCache bool
	// TTL overrides the default cache time-to-live.
	TTL time.Duration
}

// Signature is a deterministic key of (action, entity ids, cursor, params).
// Entity ids and params are sorted so that ordering does not matter.
func (r Request) Signature() string {
	ids := append([]string(nil), r.EntityIDs...)
	sort.Strings(ids)

	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	b := strings.Builder{}
	b.WriteString(r.Action)
	b.WriteString("|")
	b.WriteString(strings.Join(ids, ","))
	b.WriteString("|")
	b.WriteString(fmt.Sprintf("%d", r.Cursor))

	for _, k := range keys {
		b.WriteString(fmt.Sprintf("|%s=%s", k, r.Params[k]))
	}

	hash := md5.Sum([]byte(b.String()))

	return hex.EncodeToString(hash[:])
}
