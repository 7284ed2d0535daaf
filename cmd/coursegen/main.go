package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/yungbote/coursegen/internal/platform/apierr"
)

func main() {
	parser := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) {
			if ferr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, ferr.Message)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, ferr.Message)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, apierr.UserMessage(err))
		os.Exit(1)
	}
}
