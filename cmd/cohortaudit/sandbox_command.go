package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cohortaudit/internal/logging"
	"cohortaudit/internal/sandbox"
)

func newSandboxCommand(ctx *commandContext) *cobra.Command {
	sandboxCmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Evaluate restricted Lua scripts against history data",
	}
	sandboxCmd.AddCommand(newSandboxRunCommand(ctx))
	return sandboxCmd
}

func newSandboxRunCommand(ctx *commandContext) *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "run [script.lua]",
		Short: "Run a script read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Sandbox.Enabled {
				return errors.New("sandbox is disabled (sandbox.enabled = false)")
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			var req sandbox.Request
			if path := strings.TrimSpace(dataPath); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read data file: %w", err)
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("decode data file %s: %w", path, err)
				}
			}
			code, err := readScript(cmd, args)
			if err != nil {
				return err
			}
			req.Code = code

			runner := sandbox.Runner{Logger: logging.NewComponentLogger(logger, "sandbox")}
			resp, err := runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("script failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "JSON file with appointments, clients, clinicians and constraints")
	return cmd
}

func readScript(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read script from stdin: %w", err)
	}
	return string(data), nil
}
