package main

import (
	"fmt"
	"os"

	"github.com/apiauth/user-service/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
