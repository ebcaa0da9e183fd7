package testutil

import (
	"fmt"
	"os"
	"testing"
)

// TestEnv points the suite at a running reservations service and the
// MongoDB instance behind it.
type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	ServerPort   string
	JWTSecret    string
}

func NewTestEnv() *TestEnv {
	serverPort := getEnv("TEST_SERVER_PORT", "8080")

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort)),
		ServerPort:   serverPort,
		JWTSecret:    getEnv("TEST_JWT_SECRET", DefaultJWTSecret),
	}
}

// Setup empties the mutable collections, loads the standard catalog and
// waits for the service to answer /health.
func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *Client) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanDatabase(t)
	mongo.SeedCatalog(t, DefaultCatalog())

	client := NewClient(e.ServerURL)
	client.WaitForHealthy(t, DefaultHealthCheckTimeout)

	return mongo, client
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

// As returns a client that authenticates every request as the given account.
func (e *TestEnv) As(t *testing.T, client *Client, email, roles string) *Client {
	t.Helper()
	return client.WithToken(MintToken(t, e.JWTSecret, email, roles))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	DefaultHealthCheckTimeout = 3 * ConnectionTimeout
	DefaultJWTSecret          = "integration-secret-at-least-32-chars!"
)
