package data

import (
	_ "embed"
)

// AccessSeed holds the default roles and permissions.
//
//go:embed seed/access.yaml
var AccessSeed []byte
