// Package migrations embeds the versioned schema files for each supported database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the local record store migrations
func SQLite() fs.FS {
	return sub("sqlite")
}

// Postgres returns the self-hosted remote migrations
func Postgres() fs.FS {
	return sub("postgres")
}

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		// dir is a literal embedded above
		panic(err)
	}
	return fsys
}
