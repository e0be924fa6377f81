package main

import (
	"log"

	"github.com/dkoval/careermate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
