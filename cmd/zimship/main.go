package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"

	"zimship/prefs"
)

type options struct {
	APIURL     string `long:"api" env:"ZIMSHIP_API" default:"http://localhost:8080" description:"API base URL"`
	Profile    string `long:"profile" env:"ZIMSHIP_PROFILE" description:"Profile directory (default ~/.zimship)"`
	DebugLevel string `long:"debuglevel" env:"ZIMSHIP_DEBUGLEVEL" default:"info" description:"Logging level, or subsys=level pairs"`
	OSScheme   string `long:"os-scheme" env:"ZIMSHIP_OS_SCHEME" default:"light" choice:"light" choice:"dark" description:"Colour scheme reported by the terminal"`
}

func (o *options) profileDir() (string, error) {
	if o.Profile != "" {
		return o.Profile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".zimship"), nil
}

// run parses args and executes the chosen command. A non-nil store replaces
// the profile database.
func run(ctx context.Context, args []string, out io.Writer, store prefs.Store) error {
	var opts options
	a := &app{ctx: ctx, opts: &opts, out: out, store: store}
	defer a.Close()

	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "zimship"
	for _, c := range commands(a) {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return err
		}
	}
	_, err := parser.ParseArgs(args)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, nil)
	var ferr *flags.Error
	switch {
	case err == nil:
	case errors.As(err, &ferr) && ferr.Type == flags.ErrHelp:
		fmt.Fprintln(os.Stdout, ferr.Message)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
