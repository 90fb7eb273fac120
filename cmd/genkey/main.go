package main

import (
	"flag"
	"fmt"

	"github.com/solvane/phonefleet-console/pkg/auth"
)

func main() {
	length := flag.Int("length", 32, "Length of the secret in bytes (will be hex encoded, so output is 2x this)")
	flag.Parse()

	secret, err := auth.RandomHex(*length)
	if err != nil {
		fmt.Printf("Error generating secret: %v\n", err)
		return
	}

	fmt.Printf("Session secret: %s\n", secret)
}
