// Package migrations embeds the SQL migration files so they can be used
// by the goose programmatic API in tests and server bootstrap.
// Each dialect keeps its own directory because column types differ.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the Postgres migrations rooted at the top of the FS, the
// layout goose.NewProvider expects.
func Postgres() fs.FS {
	return sub("postgres")
}

// SQLite returns the SQLite migrations rooted at the top of the FS.
func SQLite() fs.FS {
	return sub("sqlite")
}

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		// dir is a compile-time constant matched by the embed pattern.
		panic("migrations: " + err.Error())
	}
	return fsys
}
