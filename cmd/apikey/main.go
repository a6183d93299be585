// Command apikey generates an API key for a user and prints the API_KEYS
// entry that goes into the server's environment.
//
//	go run ./cmd/apikey github:1234567
package main

import (
	"fmt"
	"os"

	"github.com/sakif/cmdshift-learn/internal/auth"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: apikey <user-id>")
		os.Exit(2)
	}
	uid := os.Args[1]

	key, err := auth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	hash, err := auth.HashAPIKey(key, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("key (give to the user, shown once): %s\n", key)
	fmt.Printf("API_KEYS entry:                     %s=%s\n", uid, hash)
}
