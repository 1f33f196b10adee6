// Package migrations embeds the SQL schema migrations so the binaries can
// apply them without a checkout.
package migrations

import "embed"

// FS holds the numbered up/down migration pairs
//
//go:embed *.sql
var FS embed.FS
