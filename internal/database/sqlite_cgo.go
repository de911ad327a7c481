//go:build cgo

package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(path string) gorm.Dialector {
	return sqlite.Open(path)
}
