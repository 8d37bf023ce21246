package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// OpenSearchContainer represents an OpenSearch container for testing
type OpenSearchContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewOpenSearchContainer creates and starts a single-node OpenSearch
// container with the security plugin disabled.
func NewOpenSearchContainer(ctx context.Context, t *testing.T) *OpenSearchContainer {
	req := testcontainers.ContainerRequest{
		Image:        "opensearchproject/opensearch:2.11.1",
		ExposedPorts: []string{"9200/tcp"},
		Env: map[string]string{
			"discovery.type":          "single-node",
			"DISABLE_SECURITY_PLUGIN": "true",
			"OPENSEARCH_JAVA_OPTS":    "-Xms512m -Xmx512m",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("9200/tcp"),
			wait.ForHTTP("/").WithPort("9200/tcp"),
		).WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create opensearch container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "9200")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &OpenSearchContainer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
	}
}

// Endpoint returns the OpenSearch endpoint URL
func (oc *OpenSearchContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", oc.Host, oc.Port)
}

// Terminate stops and removes the container
func (oc *OpenSearchContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(oc.Container)
}
