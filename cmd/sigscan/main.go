// Command sigscan checks the signature table against a game executable on
// disk. For every site it prints where the pattern matched, how often it
// matched (a good pattern matches once), and the instruction found there.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Lyall/MandragoraFix/internal/image"
	"github.com/Lyall/MandragoraFix/internal/scan"
	"github.com/Lyall/MandragoraFix/internal/sigs"
)

// maxMatches caps the matches counted per site.
const maxMatches = 16

func main() {
	tablePath := flag.String("table", "", "signature table to use instead of the built-in one")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sigscan [-table file.yaml] game.exe")
		os.Exit(2)
	}

	tab := sigs.Default()
	if *tablePath != "" {
		var err error
		if tab, err = sigs.LoadFile(*tablePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	img, err := image.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed := report(os.Stdout, img, tab); failed > 0 {
		os.Exit(1)
	}
}

// report writes one block per site and returns how many sites did not match
// exactly once.
func report(w io.Writer, img *image.Image, tab *sigs.Table) int {
	failed := 0
	for _, s := range tab.Sites {
		all := scan.FindAll(img, s.Signature(), maxMatches)
		if len(all) == 0 {
			fmt.Fprintf(w, "%s: Pattern scan failed.\n", s.Name)
			failed++
			continue
		}
		if len(all) > 1 {
			failed++
		}
		addr := all[0]
		fmt.Fprintf(w, "%s: Address is %s+%s (%d matches)\n", s.Name, img.Name, img.Offset(addr), len(all))
		if in, err := scan.Describe(img, addr); err == nil {
			fmt.Fprintf(w, "\t%s\n", in.Text)
		}
		if s.Operand != nil {
			if err := scan.CheckOperand(img, addr, *s.Operand); err != nil {
				fmt.Fprintf(w, "\toperand: %v\n", err)
				failed++
			} else if target, err := scan.Absolute(img, addr+uintptr(*s.Operand)); err == nil {
				fmt.Fprintf(w, "\ttarget %s+%s\n", img.Name, img.Offset(target))
			}
		}
		for _, h := range s.Hooks {
			fmt.Fprintf(w, "\thook %s at +%#x\n", h.Name, h.Offset)
		}
	}
	return failed
}
