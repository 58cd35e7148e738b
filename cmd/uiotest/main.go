package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd, _ := newCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}

	var logged *loggedError
	if !errors.As(err, &logged) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		cmd.SetOut(os.Stderr)
		_ = cmd.Usage()
	}
	os.Exit(1)
}
