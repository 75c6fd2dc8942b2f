// Package main prints freshly generated secrets for a new deployment: an
// FBS_JWT_SECRET for signing sessions and a base64 AES-256 key for
// export.archive.encryption_key. Nothing is written to disk; pipe the output
// into your secret store.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/feedback-system/feedback-system/internal/crypto"
)

func main() {
	envFormat := flag.Bool("env", false, "print as KEY=value lines")
	flag.Parse()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal(err)
	}
	jwtSecret := hex.EncodeToString(secret)

	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}
	archiveKey := base64.StdEncoding.EncodeToString(key)

	// Round-trip through the parser the server uses so a bad key never leaves this tool.
	if _, err := crypto.ParseKey(archiveKey); err != nil {
		log.Fatalf("generated archive key does not parse: %v", err)
	}

	if *envFormat {
		fmt.Printf("FBS_JWT_SECRET=%s\n", jwtSecret)
		fmt.Printf("FBS_EXPORT_ARCHIVE_ENCRYPTION_KEY=%s\n", archiveKey)
		return
	}

	fmt.Println("=== Generated secrets ===")
	fmt.Printf("JWT signing secret (FBS_JWT_SECRET):\n  %s\n\n", jwtSecret)
	fmt.Printf("Archive encryption key (export.archive.encryption_key):\n  %s\n\n", archiveKey)
	fmt.Println("Store both in your secret manager. Rotating the archive key makes earlier")
	fmt.Println("encrypted archives unreadable unless the old key is kept.")
}
