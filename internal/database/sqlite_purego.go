//go:build !cgo

package database

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// pure Go driver for CGO_ENABLED=0 builds, such as the distroless image
func openSQLite(path string) gorm.Dialector {
	return sqlite.Open(path)
}
