// Command tokengen mints a bearer token for the registry API. Identity is
// managed outside the server, so operators issue tokens (including the
// administrator's) from the shared secret.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/arbolado/treeregistry/internal/server/auth"
)

func main() {
	uid := flag.String("u", "", "caller UID to embed in the token")
	secret := flag.String("s", "", "HMAC secret the server verifies with")
	ttl := flag.Duration("t", 24*time.Hour, "token validity")
	flag.Parse()

	if *uid == "" || *secret == "" {
		log.Fatal("both -u and -s are required")
	}

	token, err := auth.GenerateToken(*uid, []byte(*secret), *ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
}
