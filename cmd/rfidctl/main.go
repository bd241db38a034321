package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/config"
	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/service"
	"github.com/collapsinghierarchy/rfidgate/store"
	"github.com/collapsinghierarchy/rfidgate/store/backend"
)

func main() {
	app := cli.NewApp()

	app.Name = "rfidctl"
	app.Usage = "Inspect and edit the rfidgate tag list"
	app.Version = "0.1.0"
	app.Action = cli.ShowAppHelp
	app.Flags = []cli.Flag{flgConfig}

	app.Commands = []cli.Command{
		{
			Name:      "lookup",
			Aliases:   []string{"l"},
			Usage:     "Show the record that grants or denies a tag",
			ArgsUsage: "<uid>",
			Action:    lookup,
		},
		{
			Name:    "register",
			Aliases: []string{"r"},
			Usage:   "Append a record, refusing duplicates",
			Action:  register,
			Flags:   []cli.Flag{flgUID, flgName, flgRole},
		},
		{
			Name:   "list",
			Usage:  "Print every record in storage order",
			Action: list,
		},
		{
			Name:      "init-config",
			Usage:     "Write the default configuration",
			ArgsUsage: "<path>",
			Action:    initConfig,
			Flags:     []cli.Flag{flgForce},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rfidctl: %v\n", err)
		os.Exit(1)
	}
}

// withStore opens the configured backend for the duration of fn.
func withStore(c *cli.Context, fn func(ctx context.Context, st store.Store) error) error {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return errors.Wrap(err, "can't load config")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return errors.Wrap(err, "can't open store")
	}
	defer closeStore()
	return fn(ctx, st)
}

func lookup(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("lookup needs exactly one uid")
	}
	uid := c.Args().First()
	return withStore(c, func(ctx context.Context, st store.Store) error {
		rec, ok, err := st.Lookup(ctx, uid)
		if err != nil {
			return errors.Wrap(err, "lookup failed")
		}
		if !ok {
			fmt.Printf("%s: unknown tag\n", model.NormalizeUID(uid))
			return nil
		}
		fmt.Printf("%s: %s (%s)\n", rec.UID, rec.Name, rec.Role)
		return nil
	})
}

func register(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, st store.Store) error {
		svc := service.New(st, clock.Real{})
		rec, err := svc.Register(ctx, c.String("uid"), c.String("name"), c.String("role"))
		if err != nil {
			return errors.Wrap(err, "can't register")
		}
		fmt.Printf("registered %s as %s (%s)\n", rec.UID, rec.Name, rec.Role)
		return nil
	})
}

func list(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, st store.Store) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tNAME\tROLE")
		n := 0
		err := st.Stream(ctx, func(rec *model.UidRecord) error {
			n++
			_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", rec.UID, rec.Name, rec.Role)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "can't list records")
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d record(s)\n", n)
		return nil
	})
}

func initConfig(c *cli.Context) error {
	path := config.DefaultPath
	if c.NArg() > 0 {
		path = c.Args().First()
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return errors.Errorf("%s exists, use --force to overwrite", path)
	}
	if err := config.Write(path, config.Default()); err != nil {
		return errors.Wrapf(err, "can't write %s", path)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
