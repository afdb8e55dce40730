// Package migrations embeds the goose SQL migrations for the server store
// and the client-side local store.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed server/*.sql client/*.sql
var FS embed.FS

// Server returns the migrations applied to the authoritative server database.
func Server() fs.FS {
	return sub("server")
}

// Client returns the migrations applied to a client's offline replica.
func Client() fs.FS {
	return sub("client")
}

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(FS, dir)
	if err != nil {
		// Only reachable if the embed pattern above is changed.
		panic("migrations: " + err.Error())
	}
	return fsys
}
