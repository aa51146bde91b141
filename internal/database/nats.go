package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// ConnectNATS establishes a connection to the NATS server for workflow
// event publishing. An empty URL is allowed and returns a nil connection;
// the notifier degrades to log-only delivery.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return conn, nil
}
