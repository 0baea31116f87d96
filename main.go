package main

import (
	"log"

	"github.com/henryk/ipsec-me/config"
	"github.com/henryk/ipsec-me/server"
)

func main() {
	cfg := config.MustLoad()
	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
