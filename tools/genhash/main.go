// Command genhash prints a bcrypt hash for the operator password. The output
// goes into OPERATOR_PASSWORD_HASH or the auth.operator_password_hash config
// key.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/yourusername/mc-instance-manager/internal/auth"
)

func main() {
	password := flag.String("password", "", "Password to hash")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("OPERATOR_PASSWORD")
	}
	if *password == "" {
		log.Fatal("Password is required (use -password or set OPERATOR_PASSWORD)")
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
