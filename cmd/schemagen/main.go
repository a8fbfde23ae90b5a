// Command schemagen writes the websocket protocol JSON schema to disk.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"coin-arena/internal/protocol"

	"github.com/pkg/errors"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func writeSchema(outPath string) error {
	data, err := json.MarshalIndent(protocol.Schema(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal schema")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.Wrap(err, "create schema directory")
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "write temp schema")
	}

	return errors.Wrap(os.Rename(tmpPath, outPath), "replace schema")
}
