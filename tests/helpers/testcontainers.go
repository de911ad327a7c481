// This file is a helper for running tests with testcontainers.
// It is used by the integration and e2e tests and by the cmd/testcontainers executable.
// Expects environment variables to be loaded from .env files; defaults cover a postgres stack.
//

package helpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/localnerve/formsdb/internal/config"
)

const (
	dbNetworkAlias      = "database"
	redisNetworkAlias   = "redis"
	formsdbImageDefault = "formsdb-test:latest"
)

type TestContainers struct {
	Network          *testcontainers.DockerNetwork
	DBContainer      testcontainers.Container
	RedisContainer   testcontainers.Container
	FormsDBContainer testcontainers.Container

	dbPort nat.Port
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.FormsDBContainer != nil {
		if err := tc.FormsDBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate FormsDB: %v", err)
		}
	}
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate database: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// DBConfig returns a configuration that reaches the database container from the host.
func (tc *TestContainers) DBConfig(t *testing.T) *config.Config {
	ctx := context.Background()

	host, err := tc.DBContainer.Host(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to get database host")
	}
	port, err := tc.DBContainer.MappedPort(ctx, tc.dbPort)
	if err != nil {
		exitWithError(t, err, "Failed to get database port")
	}

	return &config.Config{
		DBType:                  dbType(),
		DBHost:                  host,
		DBPort:                  port.Port(),
		DBAppDatabase:           getEnv("DB_APP_DATABASE", "formsdb"),
		DBAppUser:               getEnv("DB_APP_USER", "formsdb"),
		DBAppPassword:           getEnv("DB_APP_PASSWORD", "formsdb"),
		DBAppConnectionLimit:    5,
		DBPublicUser:            getEnv("DB_APP_USER", "formsdb"),
		DBPublicPassword:        getEnv("DB_APP_PASSWORD", "formsdb"),
		DBPublicConnectionLimit: 5,
		DBLogLevel:              "silent",
	}
}

// RedisURL returns the host-reachable url of the redis container.
func (tc *TestContainers) RedisURL(t *testing.T) string {
	ctx := context.Background()

	host, err := tc.RedisContainer.Host(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to get redis host")
	}
	port, err := tc.RedisContainer.MappedPort(ctx, "6379/tcp")
	if err != nil {
		exitWithError(t, err, "Failed to get redis port")
	}
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// BaseURL returns the host-reachable url of the FormsDB container.
func (tc *TestContainers) BaseURL(t *testing.T) string {
	ctx := context.Background()

	host, err := tc.FormsDBContainer.Host(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to get FormsDB host")
	}
	port, err := tc.FormsDBContainer.MappedPort(ctx, nat.Port(getEnv("PORT", "3000")+"/tcp"))
	if err != nil {
		exitWithError(t, err, "Failed to get FormsDB port")
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// CreateDataContainers starts the database and redis on a shared network.
func CreateDataContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	testContainers.Network = nw

	dbPort, err := nat.NewPort("tcp", defaultDBPort())
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}
	testContainers.dbPort = dbPort

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        dbImage(),
			ExposedPorts: []string{string(dbPort)},
			Env:          getDBInitEnvMap(dbType()),
			WaitingFor:   dbWaitStrategy(dbPort),
			Networks:     []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {dbNetworkAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to start database: %w", err)
	}
	testContainers.DBContainer = dbContainer

	redisPort, err := nat.NewPort("tcp", "6379")
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to create redis port: %w", err)
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        getEnv("REDIS_IMAGE", "redis:7-alpine"),
			ExposedPorts: []string{string(redisPort)},
			WaitingFor:   wait.ForListeningPort(redisPort).WithStartupTimeout(30 * time.Second),
			Networks:     []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {redisNetworkAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to start redis: %w", err)
	}
	testContainers.RedisContainer = redisContainer

	logMessage(t, "DB_HOST=%s DB_PORT=%s", must(dbContainer.Host(ctx)), mappedPort(ctx, dbContainer, dbPort))
	logMessage(t, "REDIS_URL=%s", testContainers.RedisURL(t))
	return testContainers, nil
}

// CreateAllTestContainers starts the data containers and a FormsDB container
// running in jwt mode against them. FORMSDB_IMAGE (default formsdb-test:latest)
// is reused when present locally, otherwise built from the repository Dockerfile.
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()

	testContainers, err := CreateDataContainers(t)
	if err != nil {
		return nil, err
	}

	port, err := nat.NewPort("tcp", getEnv("PORT", "3000"))
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to create FormsDB port: %w", err)
	}

	request := testcontainers.ContainerRequest{
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"PORT":            port.Port(),
			"DB_TYPE":         dbType(),
			"DB_HOST":         dbNetworkAlias,
			"DB_PORT":         testContainers.dbPort.Port(),
			"DB_APP_DATABASE": getEnv("DB_APP_DATABASE", "formsdb"),
			"DB_APP_USER":     getEnv("DB_APP_USER", "formsdb"),
			"DB_APP_PASSWORD": getEnv("DB_APP_PASSWORD", "formsdb"),
			"AUTH_MODE":       "jwt",
			"JWT_SECRET":      JWTSecret(),
			"REDIS_URL":       fmt.Sprintf("redis://%s:6379/0", redisNetworkAlias),
			"BOOTSTRAP_ADMIN": getEnv("BOOTSTRAP_ADMIN", "e2e-admin"),
			"LOG_LEVEL":       getEnv("LOG_LEVEL", "info"),
		},
		WaitingFor: wait.ForHTTP("/health").WithPort(port).WithStartupTimeout(60 * time.Second),
		Networks:   []string{testContainers.Network.Name},
	}

	imageName := getEnv("FORMSDB_IMAGE", formsdbImageDefault)
	exists, err := imageExists(ctx, imageName)
	if err != nil {
		logMessage(t, "Could not list images, building %s: %v", imageName, err)
	}
	if exists {
		logMessage(t, "Image %s exists, reusing...", imageName)
		request.Image = imageName
	} else {
		buildContext := getEnv("TESTCONTAINERS_BUILD_CONTEXT", "../..")
		repo, tag, _ := strings.Cut(imageName, ":")
		if tag == "" {
			tag = "latest"
		}
		logMessage(t, "Building %s from %s", imageName, buildContext)
		request.FromDockerfile = testcontainers.FromDockerfile{
			Context:    buildContext,
			Dockerfile: "Dockerfile",
			Repo:       repo,
			Tag:        tag,
			KeepImage:  true,
			BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
				opts.Target = "runtime"
			},
			PrintBuildLog: os.Getenv("DEBUG_CONTAINER") == "true",
		}
	}

	formsdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	})
	if err != nil {
		testContainers.Terminate(t)
		return nil, fmt.Errorf("failed to start FormsDB: %w", err)
	}
	testContainers.FormsDBContainer = formsdbContainer

	logMessage(t, "BASE_URL=%s", testContainers.BaseURL(t))
	logMessage(t, "FormsDB testcontainer started successfully")
	return testContainers, nil
}

// JWTSecret is the signing secret shared by the FormsDB container and the tests.
func JWTSecret() string {
	return getEnv("JWT_SECRET", "formsdb-test-secret")
}

func dbType() string {
	return getEnv("DB_TYPE", "postgres")
}

func dbImage() string {
	if image := os.Getenv("DB_IMAGE"); image != "" {
		return image
	}
	switch dbType() {
	case "mysql", "mariadb":
		return "mariadb:11"
	}
	return "postgres:16-alpine"
}

func defaultDBPort() string {
	switch dbType() {
	case "mysql", "mariadb":
		return "3306"
	}
	return "5432"
}

func dbWaitStrategy(port nat.Port) wait.Strategy {
	switch dbType() {
	case "mysql", "mariadb":
		return wait.ForListeningPort(port).WithStartupTimeout(60 * time.Second)
	}
	return wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(60 * time.Second)
}

func getDBInitEnvMap(dbType string) map[string]string {
	switch dbType {
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": getEnv("DB_ROOT_PASSWORD", "formsdb-root"),
			"MYSQL_DATABASE":      getEnv("DB_APP_DATABASE", "formsdb"),
			"MYSQL_USER":          getEnv("DB_APP_USER", "formsdb"),
			"MYSQL_PASSWORD":      getEnv("DB_APP_PASSWORD", "formsdb"),
		}
	}
	return map[string]string{
		"POSTGRES_PASSWORD": getEnv("DB_APP_PASSWORD", "formsdb"),
		"POSTGRES_USER":     getEnv("DB_APP_USER", "formsdb"),
		"POSTGRES_DB":       getEnv("DB_APP_DATABASE", "formsdb"),
	}
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{Filters: filters.NewArgs(filters.Arg("reference", imageName))})
	if err != nil {
		return false, err
	}
	return len(images) > 0, nil
}

func mappedPort(ctx context.Context, c testcontainers.Container, port nat.Port) string {
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return ""
	}
	return mapped.Port()
}

func must(s string, err error) string {
	if err != nil {
		return ""
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
