package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/PatchLens/sol-upgrade-lens/transpile"
	"github.com/PatchLens/sol-upgrade-lens/transpile/cmd"
)

const pprofDebug = false

func main() {
	log.SetFlags(log.LstdFlags)

	if pprofDebug {
		go func() {
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Printf("pprof server failure: %v", err)
			}
		}()
	}

	config, err := cmd.ParseFlags(nil) // no custom flags for the standard transpiler
	if err != nil {
		log.Fatalf("%s%v", transpile.ErrorLogPrefix, err)
	}

	if err := transpile.Run(config); err != nil {
		log.Fatalf("%s%v", transpile.ErrorLogPrefix, err)
	}
}
