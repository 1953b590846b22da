// Package appfs exposes embedded static assets (database migrations).
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
