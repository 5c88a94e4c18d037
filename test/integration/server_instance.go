package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/endpoints"
)

// portCounter is used to allocate unique ports for each test server
var portCounter int32 = 19000

// ServerConfig holds configuration for a test panel server instance
type ServerConfig struct {
	SessionSecret string
}

// ServerInstance represents a panel server started for a single test,
// alongside the shared one the suite boots with.
type ServerInstance struct {
	Server        *server.Server
	ServerURL     string
	Port          int
	Config        ServerConfig
	cancel        context.CancelFunc
	listener      net.Listener
	serverProcess *exec.Cmd // For binary mode
	inlineMode    bool
}

// StartServer creates and starts a new panel server instance against
// the suite's database. It follows the mode the suite was started in.
func StartServer(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	if tc.InlineMode {
		return startInlineServerInstance(tc, cfg)
	}
	return startBinaryServerInstance(tc, cfg)
}

// startInlineServerInstance starts an in-process server
func startInlineServerInstance(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	// Allocate a unique port
	port := int(atomic.AddInt32(&portCounter, 1))

	// Create DB connection for this server instance
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  tc.DatabaseURL,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	reg, err := registry.LoadFile(tc.RegistryPath)
	if err != nil {
		return nil, err
	}

	panelCfg := &config.PanelConfig{
		ListenAddr:         fmt.Sprintf("127.0.0.1:%d", port),
		BasePath:           "/panel",
		RegistryPath:       tc.RegistryPath,
		SessionSecret:      cfg.SessionSecret,
		SessionTTL:         3600,
		RowListLimit:       1000,
		LiveUpdatesEnabled: true,
	}

	s := server.NewServer(panelCfg, reg, db)
	endpoints.RegisterAll(s)

	// Create a listener so the port is bound before the serving
	// goroutine starts
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", port, err)
	}

	_, cancel := context.WithCancel(context.Background())

	instance := &ServerInstance{
		Server:     s,
		ServerURL:  fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:       port,
		Config:     cfg,
		cancel:     cancel,
		listener:   listener,
		inlineMode: true,
	}

	// Start server in background using the listener
	go func() {
		_ = s.StartWithListener(listener)
	}()

	// Wait for server to be ready
	if err := waitForServer(instance.ServerURL, 10*time.Second); err != nil {
		instance.Stop()
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return instance, nil
}

// startBinaryServerInstance starts a server using the objpermsctl binary
func startBinaryServerInstance(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	// Allocate a unique port
	port := int(atomic.AddInt32(&portCounter, 1))

	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, tc.BinaryPath, "server", "--no-migrate", "--listen", fmt.Sprintf("127.0.0.1:%d", port))
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+tc.DatabaseURL,
		"OBJPERMS_REGISTRY_PATH="+tc.RegistryPath,
		"OBJPERMS_SESSION_SECRET="+cfg.SessionSecret,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start binary: %w", err)
	}

	instance := &ServerInstance{
		ServerURL:     fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:          port,
		Config:        cfg,
		cancel:        cancel,
		serverProcess: cmd,
		inlineMode:    false,
	}

	// Wait for server to be ready
	if err := waitForServer(instance.ServerURL, 30*time.Second); err != nil {
		instance.Stop()
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return instance, nil
}

// Stop shuts down the server instance
func (si *ServerInstance) Stop() {
	if si.cancel != nil {
		si.cancel()
	}
	if si.listener != nil {
		_ = si.listener.Close()
	}
	if si.serverProcess != nil && si.serverProcess.Process != nil {
		_ = si.serverProcess.Process.Kill()
		_ = si.serverProcess.Wait()
	}
}
