// cmd/escpos-dump/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"escpos-service/internal/utils"
	"escpos-service/pkg/barcode"
	"escpos-service/pkg/escpos"
)

type options struct {
	codePage     string
	nulMaxMode   int
	merge        bool
	showHex      bool
	showBarcodes bool
	showState    bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("escpos-dump", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&opts.codePage, "codepage", "c", "utf8", "text code page (utf8, cp437, cp850, windows1252)")
	flagSet.IntVar(&opts.nulMaxMode, "barcode-threshold", int(escpos.DefaultBarcodeNULMaxMode), "highest GS k mode using NUL terminated data")
	flagSet.BoolVarP(&opts.merge, "merge", "m", false, "merge adjacent text runs with the same style")
	flagSet.BoolVarP(&opts.showHex, "hex", "x", false, "print a hex dump before the listing")
	flagSet.BoolVarP(&opts.showBarcodes, "barcodes", "b", false, "render barcode commands as module strips")
	flagSet.BoolVarP(&opts.showState, "state", "s", false, "print the printer state after each command")
	flagSet.Usage = func() {
		fmt.Fprintf(out, "Usage: escpos-dump [flags] FILE...\n\nDecodes captured ESC/POS job files.\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return fmt.Errorf("no input files")
	}

	cp, err := escpos.ParseCodePage(opts.codePage)
	if err != nil {
		return err
	}
	if opts.nulMaxMode < 0 || opts.nulMaxMode > 255 {
		return fmt.Errorf("barcode-threshold must be between 0 and 255")
	}
	threshold := byte(opts.nulMaxMode)
	decoder := escpos.NewDecoder(escpos.Options{CodePage: cp, BarcodeNULMaxMode: &threshold})

	for i, path := range flagSet.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := dump(out, path, data, decoder, opts); err != nil {
			return err
		}
	}
	return nil
}

func dump(out io.Writer, name string, data []byte, decoder *escpos.Decoder, opts options) error {
	fmt.Fprintf(out, "== %s (%d bytes)\n", name, len(data))

	if opts.showHex && len(data) > 0 {
		fmt.Fprintln(out, utils.PrettyHex(data))
	}

	cmds := decoder.Decode(data)
	if opts.merge {
		cmds = escpos.MergeText(cmds)
	}

	if !opts.showState {
		if err := escpos.WriteListing(out, cmds); err != nil {
			return err
		}
	} else {
		for i, line := range escpos.FormatListing(cmds) {
			fmt.Fprintf(out, "%s  %+v\n", line, cmds[i].State)
		}
	}

	if opts.showBarcodes {
		for i, cmd := range cmds {
			bc, ok := cmd.Command.(escpos.Barcode)
			if !ok {
				continue
			}
			result, ok := barcode.Encode(bc.Mode, bc.Data)
			if !ok {
				fmt.Fprintf(out, "%04d: barcode mode %d not rendered\n", i, bc.Mode)
				continue
			}
			fmt.Fprintf(out, "%04d: %s %q (%d modules)\n", i, result.Symbology, result.Text, result.Modules())
			fmt.Fprintln(out, strip(result))
		}
	}
	return nil
}

// strip draws a symbol one character per module.
func strip(r barcode.Result) string {
	var sb strings.Builder
	dark := r.StartsDark
	for _, n := range r.Runs {
		ch := " "
		if dark {
			ch = "#"
		}
		sb.WriteString(strings.Repeat(ch, n))
		dark = !dark
	}
	return sb.String()
}
