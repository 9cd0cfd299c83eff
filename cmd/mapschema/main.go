package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
)

// mapschema emits the JSON Schema for map documents so external tooling can
// validate maps without running the server.
func main() {
	out := flag.String("out", "", "write the schema to a file instead of stdout")
	flag.Parse()

	data, err := json.MarshalIndent(mapdoc.Schema(), "", "  ")
	if err != nil {
		log.Fatalf("marshal schema: %v", err)
	}
	data = append(data, '\n')

	if *out == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
}
