package main

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/defistate/swapintent-go/prices"
	"github.com/fatih/color"
)

const confirmWord = "confirm"

// terminal asks the user questions on the command line. It implements
// prices.Confirmer.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
}

var _ prices.Confirmer = (*terminal)(nil)

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewReader(in), out: out}
}

func (t *terminal) ask(question string) string {
	fmt.Fprint(t.out, question)
	response, err := t.in.ReadString('\n')
	if err != nil && response == "" {
		return ""
	}
	return strings.TrimSpace(response)
}

// YesNo asks a y/N question. Anything but yes declines.
func (t *terminal) YesNo(question string) bool {
	response := strings.ToLower(t.ask(fmt.Sprintf("\n%s (y/N): ", question)))
	return response == "y" || response == "yes"
}

func (t *terminal) Confirm(impact *big.Rat) bool {
	fmt.Fprintln(t.out, color.YellowString("\nThis swap has a price impact of at least %s.", prices.Percent(impact)))
	return t.YesNo("Please confirm that you would like to continue with this swap.")
}

func (t *terminal) ConfirmHigh(impact *big.Rat) bool {
	fmt.Fprintln(t.out, color.RedString("\nThis swap has a price impact of at least %s.", prices.Percent(impact)))
	response := t.ask(fmt.Sprintf("Please type the word %q to continue with this swap: ", confirmWord))
	return response == confirmWord
}
