package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fleetgate/fleetgate/internal/identity"
)

// hashpw prints the argon2id hash for a password, for provisioning
// credential rows: pass the password as the only argument or pipe it in.
func main() {
	log.SetFlags(0)

	var password string
	switch {
	case len(os.Args) == 2:
		password = os.Args[1]
	default:
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			log.Fatal("usage: hashpw <password> (or pipe the password on stdin)")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
