package db

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoTestContainer manages a throwaway MongoDB container for integration tests.
type MongoTestContainer struct {
	container testcontainers.Container
	logger    *log.Logger
	uri       string
}

// SetupMongoTestContainer starts a MongoDB container and returns once it accepts connections.
func SetupMongoTestContainer(ctx context.Context, logger *log.Logger) (*MongoTestContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Waiting for connections").WithStartupTimeout(2*time.Minute),
			wait.ForListeningPort("27017/tcp").WithStartupTimeout(2*time.Minute),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, "27017")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, mappedPort.Port())
	logger.Info("MongoDB test container started", "uri", uri)

	return &MongoTestContainer{
		container: container,
		logger:    logger,
		uri:       uri,
	}, nil
}

func (c *MongoTestContainer) URI() string {
	return c.uri
}

func (c *MongoTestContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	c.logger.Info("Terminating MongoDB test container")
	return c.container.Terminate(ctx)
}
