//go:build cgo

package remote

import (
	_ "github.com/tursodatabase/go-libsql" // libSQL driver for Turso (requires cgo)
)
