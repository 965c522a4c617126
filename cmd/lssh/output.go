package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(stderr, "Error: "+format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(stderr, format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(stdout, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format+"\n", args...)
}

func printJSON(v interface{}) {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
