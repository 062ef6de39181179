package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/barq/internal/codearchive"
	"github.com/oriys/barq/internal/config"
	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/invoker"
	"github.com/oriys/barq/internal/logsink"
	"github.com/oriys/barq/internal/pkg/fsutil"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/runtime"
	"github.com/oriys/barq/internal/service"
	"github.com/oriys/barq/internal/workspace"
)

var (
	pgDSN      string
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "barqd",
		Short: "barq - a minimal FaaS invocation engine with a warm-container pool",
		Long:  "barqd registers functions, invokes them through Docker-backed cold/warm execution, and can run as a long-lived daemon exposing an HTTP API.",
	}

	rootCmd.PersistentFlags().StringVar(&pgDSN, "pg-dsn", "", "PostgreSQL DSN (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to JSON config file (optional, flags override)")

	rootCmd.AddCommand(
		registerCmd(),
		listCmd(),
		getCmd(),
		deleteCmd(),
		invokeCmd(),
		statsCmd(),
		runtimesCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			cfg = config.DefaultConfig()
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	if pgDSN != "" {
		cfg.Postgres.DSN = pgDSN
	}
	return cfg
}

func getRegistry(ctx context.Context) (*registry.Postgres, error) {
	cfg := loadConfig()
	return registry.NewPostgres(ctx, cfg.Postgres.DSN)
}

func registerCmd() *cobra.Command {
	var (
		funcID     string
		runtimeTag string
		entrypoint string
		codePath   string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new function",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			reg, err := getRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			codeBytes, err := os.ReadFile(codePath)
			if err != nil {
				return fmt.Errorf("read code file: %w", err)
			}

			cfg := loadConfig()
			archiver, err := codearchive.New(ctx, cfg.S3)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: code archival disabled: %v\n", err)
			}

			svc := service.NewFunctionService(reg).WithArchiver(archiver)
			fn, err := svc.RegisterFunction(ctx, service.RegisterFunctionRequest{
				FuncID:     funcID,
				Runtime:    runtimeTag,
				Entrypoint: entrypoint,
				Code:       string(codeBytes),
			})
			if err != nil {
				return err
			}

			digest, err := fsutil.HashFile(codePath)
			if err != nil {
				digest = "unknown"
			}

			fmt.Printf("Function registered:\n")
			fmt.Printf("  ID:         %s\n", fn.ID)
			fmt.Printf("  Runtime:    %s\n", fn.Runtime)
			fmt.Printf("  Entrypoint: %s\n", fn.Entrypoint)
			fmt.Printf("  Code hash:  %s\n", digest)
			fmt.Printf("  Created:    %s\n", fn.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&funcID, "id", "", "Function ID (generated if omitted)")
	cmd.Flags().StringVarP(&runtimeTag, "runtime", "r", "", "Runtime tag (e.g. python3.11, nodejs20.x, go1.x)")
	cmd.Flags().StringVarP(&entrypoint, "entrypoint", "e", "", "Entrypoint (defaults per runtime)")
	cmd.Flags().StringVarP(&codePath, "code", "c", "", "Path to the function's source file")
	cmd.MarkFlagRequired("runtime")
	cmd.MarkFlagRequired("code")

	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all registered functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			reg, err := getRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			fns, err := reg.ListFunctions(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRUNTIME\tENTRYPOINT\tCREATED")
			for _, fn := range fns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fn.ID, fn.Runtime, fn.Entrypoint, fn.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <func-id>",
		Short: "Show a function's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			reg, err := getRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			fn, err := reg.GetFunction(ctx, args[0])
			if err != nil {
				return err
			}
			b, _ := json.MarshalIndent(fn, "", "  ")
			fmt.Println(string(b))
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <func-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a function",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			reg, err := getRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			if err := reg.DeleteFunction(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Function '%s' deleted\n", args[0])
			return nil
		},
	}
}

func runtimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List supported runtimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VALUE\tLABEL\tCATEGORY")
			for _, e := range domain.RuntimeCatalog() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Value, e.Label, e.Category)
			}
			return w.Flush()
		},
	}
}

// invokeCmd runs an invocation against an ad hoc invoker built just for
// this one call, the same one-shot-collaborator pattern the teacher's CLI
// invoke command uses around its VM manager and executor.
func invokeCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "invoke <func-id>",
		Short: "Invoke a function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx := context.Background()

			reg, err := registry.NewPostgres(ctx, cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer reg.Close()

			drv, err := driver.NewDockerDriver()
			if err != nil {
				return fmt.Errorf("docker driver: %w", err)
			}

			ws, err := workspace.NewManager(cfg.Docker.CodeDir)
			if err != nil {
				return fmt.Errorf("workspace manager: %w", err)
			}

			runtimes := runtime.NewRegistry(cfg.Docker.ImagePrefix)
			p := pool.New(drv, cfg.Pool.MaxContainers, cfg.Pool.TTL)
			defer p.Shutdown(context.Background())

			sink := logsink.NewRegistryStore(reg)
			inv := invoker.New(reg, p, runtimes, ws, drv, sink)

			var event json.RawMessage
			if payload != "" {
				event = json.RawMessage(payload)
			} else {
				event = json.RawMessage("{}")
			}

			resp, err := inv.Invoke(ctx, args[0], event)
			if err != nil {
				return err
			}

			fmt.Printf("Execution:  %s\n", resp.Performance.ExecutionType)
			fmt.Printf("Success:    %v\n", resp.Success)
			fmt.Printf("Total:      %d ms\n", resp.Performance.TotalMs)
			if resp.Performance.ColdstartMs > 0 {
				fmt.Printf("Coldstart:  %d ms\n", resp.Performance.ColdstartMs)
			}
			if resp.Error != "" {
				fmt.Printf("Error:      %s\n", resp.Error)
			} else {
				fmt.Printf("Output:     %s\n", resp.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&payload, "payload", "p", "", "JSON event payload")
	return cmd
}

func statsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the daemon's warm pool state over HTTP",
		Long:  "Fetches GET /stats from a running barqd instance.",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := httpGet(addr + "/stats")
			if err != nil {
				return err
			}
			fmt.Println(body)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "http-addr", "http://localhost:8080", "barqd HTTP address")
	return cmd
}

func httpGet(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
