// Command create_schema creates the keyspace and tables ahead of time,
// for deployments where the server's credentials cannot alter schema.
package main

import (
	"log"
	"os"
	"strings"

	"github.com/atultiwari1305/coon/pkg/db"
)

func main() {
	hostsStr := os.Getenv("SCYLLA_HOSTS")
	if hostsStr == "" {
		hostsStr = "localhost:9042"
	}
	hosts := strings.Split(hostsStr, ",")

	keyspace := os.Getenv("KEYSPACE")
	if keyspace == "" {
		keyspace = "coon"
	}

	if err := db.EnsureKeyspace(hosts, keyspace); err != nil {
		log.Fatalf("create keyspace: %v", err)
	}

	session, err := db.NewSession(hosts, keyspace)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if err := session.EnsureSchema(); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	log.Printf("schema ready in keyspace %s", keyspace)
}
