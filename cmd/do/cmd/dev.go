package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func DevCmd() *cobra.Command {
	var port int
	var storageDriver string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the server with air hot reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(port, storageDriver)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8090, "port to listen on")
	cmd.Flags().StringVar(&storageDriver, "storage", "memory", "STORAGE_DRIVER used when the environment does not set one")

	return cmd
}

// runDev replaces this process with air, rebuilding on .go and .sql changes
// (migrations are embedded in the binary).
func runDev(port int, storageDriver string) error {
	airPath, err := exec.LookPath("air")
	if err != nil {
		return fmt.Errorf("air not found, install it with: go install github.com/air-verse/air@latest")
	}

	airArgs := []string{
		"air",
		"-c", "/dev/null",
		"-root", ".",
		"-build.cmd", "go build -o ./tmp/server ./cmd/server",
		"-build.bin", "./tmp/server",
		"-build.delay", "100",
		"-build.exclude_dir", "bin,tmp,data,_examples",
		"-build.exclude_regex", "_test.go$",
		"-build.include_ext", "go,sql",
		"-build.send_interrupt", "true",
	}

	env := append(os.Environ(), "PORT="+strconv.Itoa(port))
	if os.Getenv("STORAGE_DRIVER") == "" {
		env = append(env, "STORAGE_DRIVER="+storageDriver)
	}
	if os.Getenv("APP_URL") == "" {
		env = append(env, fmt.Sprintf("APP_URL=http://localhost:%d", port))
	}

	return syscall.Exec(airPath, airArgs, env)
}
