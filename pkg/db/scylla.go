package db

import (
	"time"

	"github.com/gocql/gocql"
)

// Session wraps a gocql session with the cluster settings every service
// in this repo uses.
type Session struct {
	*gocql.Session
}

func NewSession(hosts []string, keyspace string) (*Session, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	return &Session{Session: session}, nil
}

// EnsureKeyspace connects to the system keyspace and creates the target
// keyspace if it does not exist yet.
func EnsureKeyspace(hosts []string, keyspace string) error {
	sys, err := NewSession(hosts, "system")
	if err != nil {
		return err
	}
	defer sys.Close()

	return sys.Query(`CREATE KEYSPACE IF NOT EXISTS ` + keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
}

// EnsureSchema creates the message and channel tables used by the server.
// Schema creation belongs in migration tooling for production; this keeps
// single-node deploys and local development self-contained.
func (s *Session) EnsureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			channel_id text,
			id bigint,
			sender_id text,
			content text,
			timestamp timestamp,
			PRIMARY KEY (channel_id, id)
		) WITH CLUSTERING ORDER BY (id DESC)`,
		`CREATE TABLE IF NOT EXISTS messages_by_id (
			id bigint PRIMARY KEY,
			channel_id text,
			sender_id text
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			channel_name text PRIMARY KEY,
			admin_id text,
			access_type text,
			members set<text>,
			created_at timestamp,
			deleted boolean
		)`,
	}
	for _, stmt := range stmts {
		if err := s.Query(stmt).Exec(); err != nil {
			return err
		}
	}
	return nil
}
