package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwtPkg "YoloPipeline/pkg/jwt"

	"github.com/joho/godotenv"
)

// token issues an access token for local testing of the protected API routes.
func main() {
	uid := flag.String("uid", "", "subject uid to put in the token")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "usage: token --uid <uid> [--email <email>] [--ttl 1h]")
		os.Exit(2)
	}

	claims := map[string]interface{}{"uid": *uid}
	if *email != "" {
		claims["email"] = *email
	}

	token, exp, err := jwtPkg.Sign(claims, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Unix(exp, 0).Format(time.RFC3339))
}
