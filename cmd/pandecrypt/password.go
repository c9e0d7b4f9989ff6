package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// readPassword prompts on w and reads a password from the terminal
// without echo. Tests replace it.
var readPassword = func(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", xerrors.New("stdin is not a terminal")
	}

	fmt.Fprint(w, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
