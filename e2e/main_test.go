package e2e

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

var appURL string

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

func runTestMain(m *testing.M) int {
	// 1. Build the binary
	buildPath := filepath.Join(os.TempDir(), "tally-e2e-test")
	cmd := exec.Command("go", "build", "-o", buildPath, "../cmd/tally")
	if _, err := os.Stat("../cmd/tally"); os.IsNotExist(err) {
		if _, err := os.Stat("cmd/tally"); err == nil {
			cmd = exec.Command("go", "build", "-o", buildPath, "./cmd/tally")
		} else {
			fmt.Println("Could not find cmd/tally to build")
			return 1
		}
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		fmt.Printf("Failed to build app: %v\n%s\n", err, output)
		return 1
	}
	defer os.Remove(buildPath)

	// 2. Start the server with a throwaway database
	dbDir, err := os.MkdirTemp("", "tally-e2e-db")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dbDir)

	port := "18081"
	appURL = "http://localhost:" + port

	serverCmd := exec.Command(buildPath)
	serverCmd.Env = append(os.Environ(),
		"PORT="+port,
		"SQLITE_DB_PATH="+filepath.Join(dbDir, "tally.db"),
		"JWT_SECRET=e2e-secret-0123456789abcdef0123456789",
		"BCRYPT_COST=4",
		"RATE_LIMIT_RPM=1000",
		"AMQP_URL=",
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	if err := serverCmd.Start(); err != nil {
		fmt.Printf("Failed to start server: %v\n", err)
		return 1
	}

	// Wait for the server to report healthy
	ready := false
	for range 50 {
		time.Sleep(100 * time.Millisecond)
		resp, err := http.Get(appURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
	}

	if !ready {
		fmt.Println("Server failed to start or is not reachable")
		serverCmd.Process.Kill()
		return 1
	}

	// 3. Run tests
	code := m.Run()

	// 4. Cleanup
	if err := serverCmd.Process.Kill(); err != nil {
		fmt.Printf("Failed to kill server: %v\n", err)
	}

	return code
}
