/*
Command tokengen mints relay access tokens for front-end deployments.

The relay's WebSocket endpoint is gated by a signed access token (see
internal/pkg/auth/jwt). This command signs one with the same JWT_SECRET the
server runs with and prints it, so a front-end deployment can be provisioned
without an interactive flow:

	JWT_SECRET=... tokengen -frontend web-dashboard [-ttl 24h]
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"warelay/internal/pkg/auth/jwt"
)

func main() {
	frontend := flag.String("frontend", "", "front-end deployment name embedded in the token")
	ttl := flag.Duration("ttl", jwt.RelayAccessExpiration, "token lifetime")
	flag.Parse()

	if *frontend == "" {
		fmt.Fprintln(os.Stderr, "tokengen: -frontend is required")
		flag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "tokengen: JWT_SECRET environment variable is required")
		os.Exit(2)
	}

	token, err := jwt.GenerateToken(&jwt.Payload{Frontend: *frontend}, secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
