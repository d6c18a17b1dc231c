// Command server runs the SkyHub API and its maintenance tasks.
//
//	server serve            start the HTTP server
//	server migrate          create or update the database schema
//	server reconcile-likes  repair drifted like counters
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
