// Package main is a development utility that generates the two secrets the
// server needs at startup: the AES key used to encrypt stored OAuth refresh
// tokens (ENCRYPTION_KEY) and the JWT signing secret (AROHA_JWT_SECRET). It
// prints ready-to-paste export lines. Do not reuse generated keys across
// environments. Rotating ENCRYPTION_KEY invalidates every stored refresh
// token, so keep the production value in a secret manager.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
)

func main() {
	encKey := make([]byte, 32)
	if _, err := rand.Read(encKey); err != nil {
		log.Fatal(err)
	}

	jwtSecret := make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Server Secrets Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nexport ENCRYPTION_KEY=%s\n", hex.EncodeToString(encKey))
	fmt.Printf("export AROHA_JWT_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(jwtSecret))
	fmt.Println("\n==========================================================")
	fmt.Println("Add these to your shell profile or .env for local runs.")
	fmt.Println("==========================================================")
}
