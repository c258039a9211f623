package main

import (
	"log"

	"github.com/savelife/rescue/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
