package main

import (
	"github.com/urfave/cli"

	"github.com/collapsinghierarchy/rfidgate/config"
)

var (
	flgConfig = cli.StringFlag{Name: "config, c", Value: config.DefaultPath, Usage: "Path to config.toml"}
	flgUID    = cli.StringFlag{Name: "uid, u", Usage: "Tag UID, colon-separated hex (AA:BB:CC:DD)"}
	flgName   = cli.StringFlag{Name: "name, n", Usage: "Holder name"}
	flgRole   = cli.StringFlag{Name: "role, r", Value: "U", Usage: "Role: A (admin) or U (user)"}
	flgForce  = cli.BoolFlag{Name: "force, f", Usage: "Overwrite an existing file"}
)
