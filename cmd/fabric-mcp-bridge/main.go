// Command fabric-mcp-bridge is an MCP stdio server that exposes every
// machine connected to a fabric server as a set of Model Context Protocol
// tools, so an MCP-speaking agent can call machine functions, read
// sensors, and move axes without speaking the fabric wire protocol
// itself (SPEC_FULL.md §6).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robofabric/fabric/internal/mcpbridge"
)

var (
	fabricAddr string
	adminAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "fabric-mcp-bridge",
	Short: "MCP stdio bridge onto a fabric server's connected machines",
	Long: `fabric-mcp-bridge connects to a fabric server as an environment peer and
serves an MCP stdio endpoint: one tool per currently-registered machine
function, named "<machine>.<function>", plus machines_list, sensor_read,
and axis_change tools for the capabilities every machine carries.`,
	RunE: runBridge,
}

func init() {
	rootCmd.Flags().StringVar(&fabricAddr, "fabric-addr", "127.0.0.1:45576", "fabric server environment control address")
	rootCmd.Flags().StringVar(&adminAddr, "admin-addr", "http://127.0.0.1:8090", "fabric server admin HTTP base URL, used for capability discovery")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	bridge, err := mcpbridge.New(fabricAddr, adminAddr)
	if err != nil {
		return fmt.Errorf("connect to fabric server: %w", err)
	}
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.RunDiscovery(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- bridge.Serve()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Printf("fabric-mcp-bridge: stdio server error: %v", err)
		}
		return err
	case <-sigChan:
		cancel()
		return nil
	}
}
