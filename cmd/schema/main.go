// Command schema writes the JSON Schema for the websocket protocol.
package main

import (
	"flag"
	"log"
	"os"

	"swingy/server/internal/net/proto"
)

func main() {
	out := flag.String("out", "", "write the schema to this file instead of stdout")
	flag.Parse()

	data, err := proto.SchemaJSON()
	if err != nil {
		log.Fatalf("schema: %v", err)
	}
	data = append(data, '\n')

	if *out == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Fatalf("schema: %v", err)
		}
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("schema: %v", err)
	}
}
