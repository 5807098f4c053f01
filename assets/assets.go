// Package assets embeds the SQL migrations shipped with scopegate.
package assets

import "embed"

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var EmbedMigrations embed.FS
