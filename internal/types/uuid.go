package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_01HQ3K5B0V2N5R6ZP7Y8X9W0AB
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_BILLING_CYCLE     = "bc"
	UUID_PREFIX_SUBSCRIPTION      = "subs"
	UUID_PREFIX_TAX_RATE          = "txr"
	UUID_PREFIX_TAX_EXEMPTION     = "txe"
	UUID_PREFIX_TAX_APPLIED       = "txa"
	UUID_PREFIX_TRANSITION        = "trn"
	UUID_PREFIX_TAX_REPORT        = "txrpt"
)
