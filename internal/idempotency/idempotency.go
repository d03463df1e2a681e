// Package idempotency derives deterministic keys for outbound provider calls
// so retried requests are deduplicated by the provider.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope namespaces keys so equal parameters in different calls never collide.
type Scope string

const (
	ScopePlatformTax Scope = "platform_tax"
	ScopeExternalTax Scope = "external_tax"
)

// HeaderName is sent by HTTP providers that accept idempotency keys.
const HeaderName = "Idempotency-Key"

// Generator generates idempotency keys
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes scope and params. Map order does not affect the key.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, params[k])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:16]))
}
