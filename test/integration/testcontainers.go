package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/endpoints"
)

// testRegistry is the definitions file every test server loads.
const testRegistry = `kinds:
  - kind: vm
    permissions:
      - name: admin
        label: Admin
        description: Full control of the virtual machine
      - name: start
      - name: stop
`

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	DB            *gorm.DB
	RawDB         *sql.DB
	Container     testcontainers.Container
	ServerURL     string
	DatabaseURL   string // Connection string for the test database
	RegistryPath  string // Definitions file the servers load
	HTTPClient    *http.Client
	Cancel        context.CancelFunc
	ServerProcess *exec.Cmd
	InlineServer  *server.Server // For inline mode
	InlineMode    bool
	BinaryPath    string

	registryDir string
}

// NewTestContext creates a new test context with a PostgreSQL testcontainer.
// Modes:
//   - Binary mode (default): Set OBJPERMS_BINARY to the path of the objpermsctl binary
//   - Inline mode: Set OBJPERMS_INLINE=1 to run the server in-process (no binary needed)
func NewTestContext(ctx context.Context) (*TestContext, error) {
	// Find project root and migrations directory
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	migrationsDir := filepath.Join(projectRoot, "db", "migrations")

	// Check mode
	inlineMode := os.Getenv("OBJPERMS_INLINE") == "1"
	binaryPath := os.Getenv("OBJPERMS_BINARY")

	if !inlineMode && binaryPath == "" {
		return nil, fmt.Errorf("Either OBJPERMS_BINARY or OBJPERMS_INLINE=1 is required.\n\nBinary mode:\n  go build -o objpermsctl ./cmd/objpermsctl\n  INTEGRATION_TEST=1 OBJPERMS_BINARY=$(pwd)/objpermsctl go test -v ./test/integration/...\n\nInline mode:\n  INTEGRATION_TEST=1 OBJPERMS_INLINE=1 go test -v ./test/integration/...")
	}

	if !inlineMode {
		// Verify the binary exists
		if _, err := os.Stat(binaryPath); err != nil {
			return nil, fmt.Errorf("OBJPERMS_BINARY path does not exist: %s", binaryPath)
		}
		log.Printf("Using binary: %s", binaryPath)
	} else {
		log.Println("Using inline server mode")
	}

	// Write the definitions file the servers will load
	registryDir, err := os.MkdirTemp("", "objperms-integration")
	if err != nil {
		return nil, fmt.Errorf("failed to create registry dir: %w", err)
	}
	registryPath := filepath.Join(registryDir, "registry.yml")
	if err := os.WriteFile(registryPath, []byte(testRegistry), 0o644); err != nil {
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to write registry file: %w", err)
	}

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("objperms_test"),
		tcpostgres.WithUsername("objperms"),
		tcpostgres.WithPassword("objperms"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	// Get connection string for the host (not container network)
	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://objperms:objperms@%s:%s/objperms_test?sslmode=disable", host, port.Port())

	// Connect with GORM for test setup/assertions
	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get raw SQL connection for migrations
	rawDB, err := db.DB()
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to get raw db: %w", err)
	}

	// Run migrations
	if err := runMigrations(rawDB, migrationsDir); err != nil {
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	serverPort := "18080" // Use a fixed port for testing
	serverURL := fmt.Sprintf("http://127.0.0.1:%s", serverPort)

	var serverProcess *exec.Cmd
	var inlineServer *server.Server
	var cancel context.CancelFunc

	if inlineMode {
		// Start inline server
		inlineServer, cancel, err = startInlineServer(db, registryPath, serverPort)
		if err != nil {
			_ = pgContainer.Terminate(ctx)
			_ = os.RemoveAll(registryDir)
			return nil, fmt.Errorf("failed to start inline server: %w", err)
		}
	} else {
		// Start the actual binary
		serverProcess, cancel, err = startBinary(binaryPath, connStr, registryPath, serverPort)
		if err != nil {
			_ = pgContainer.Terminate(ctx)
			_ = os.RemoveAll(registryDir)
			return nil, fmt.Errorf("failed to start server binary: %w", err)
		}
	}

	// Wait for server to be ready
	if err := waitForServer(serverURL, 30*time.Second); err != nil {
		cancel()
		if serverProcess != nil && serverProcess.Process != nil {
			_ = serverProcess.Process.Kill()
		}
		_ = pgContainer.Terminate(ctx)
		_ = os.RemoveAll(registryDir)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return &TestContext{
		DB:            db,
		RawDB:         rawDB,
		Container:     pgContainer,
		ServerURL:     serverURL,
		DatabaseURL:   connStr,
		RegistryPath:  registryPath,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		Cancel:        cancel,
		ServerProcess: serverProcess,
		InlineServer:  inlineServer,
		InlineMode:    inlineMode,
		BinaryPath:    binaryPath,
		registryDir:   registryDir,
	}, nil
}

// startInlineServer starts the server in-process (no binary needed)
func startInlineServer(db *gorm.DB, registryPath string, port string) (*server.Server, context.CancelFunc, error) {
	_, cancel := context.WithCancel(context.Background())

	reg, err := registry.LoadFile(registryPath)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	// The server command syncs the vocabulary on startup; the inline
	// server does the same so the panel has its permission fields.
	if err := reg.Sync(db); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to sync definitions: %w", err)
	}

	cfg := &config.PanelConfig{
		ListenAddr:         "127.0.0.1:" + port,
		BasePath:           "/panel",
		RegistryPath:       registryPath,
		SessionTTL:         3600,
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
	}

	s := server.NewServer(cfg, reg, db)
	endpoints.RegisterAll(s)

	// Start server in background
	go func() {
		_ = s.Start()
	}()

	return s, cancel, nil
}

// startBinary starts the objpermsctl server binary
func startBinary(binaryPath, dbURL, registryPath string, port string) (*exec.Cmd, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Use --no-migrate since we already ran migrations in the test setup
	cmd := exec.CommandContext(ctx, binaryPath, "server", "--no-migrate", "--listen", "127.0.0.1:"+port)
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+dbURL,
		"OBJPERMS_REGISTRY_PATH="+registryPath,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start binary: %w", err)
	}

	return cmd, cancel, nil
}

// waitForServer polls the server's status page until it responds or
// times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.Cancel != nil {
		tc.Cancel()
	}
	if tc.ServerProcess != nil && tc.ServerProcess.Process != nil {
		_ = tc.ServerProcess.Process.Kill()
		_ = tc.ServerProcess.Wait()
	}
	if tc.RawDB != nil {
		_ = tc.RawDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
	if tc.registryDir != "" {
		_ = os.RemoveAll(tc.registryDir)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	// Try relative paths from test directory
	paths := []string{
		"../..",
		"..",
		".",
	}

	for _, p := range paths {
		goMod := filepath.Join(p, "go.mod")
		if _, err := os.Stat(goMod); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations executes the up migrations in version order against a
// fresh database.
func runMigrations(db *sql.DB, migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", migrationsDir)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", filepath.Base(file), err)
		}
	}

	return nil
}
