package main

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/database"
	"github.com/localnerve/formsdb/internal/logging"
)

// Prints the sqlite DDL gorm generates for the formsdb models.
func main() {
	cfg := &config.Config{DBType: "sqlite", DBAppDatabase: ":memory:"}
	dialector, err := database.Dialector(cfg, "", "")
	if err != nil {
		logging.Logger.Fatal(err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logging.Logger.Fatal(err)
	}

	if err := database.AutoMigrate(db); err != nil {
		logging.Logger.Fatal(err)
	}

	var objects []struct {
		Type string
		Name string
		SQL  string
	}
	err = db.Raw("SELECT type, name, sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY tbl_name, type DESC").
		Scan(&objects).Error
	if err != nil {
		logging.Logger.Fatal(err)
	}

	for _, o := range objects {
		fmt.Printf("\n=== %s: %s ===\n%s\n", o.Type, o.Name, o.SQL)
	}
}
