// Package migrations embeds the SQL schema migrations so binaries apply
// them without a filesystem checkout.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
