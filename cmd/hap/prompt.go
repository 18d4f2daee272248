package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoPIN = errors.New("no PIN entered")

// pinPrompter reads a PIN line from in after writing a prompt to out.
func pinPrompter(in io.Reader, out io.Writer) func() (string, error) {
	r := bufio.NewReader(in)
	return func() (string, error) {
		fmt.Fprint(out, "Enter PIN shown on the device: ")
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		pin := strings.TrimSpace(line)
		if pin == "" {
			return "", errNoPIN
		}
		return pin, nil
	}
}
