package main

import (
	"fmt"
	"os"

	"github.com/paperclip/paperclip/internal/admin"
)

func main() {
	if err := admin.App().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
