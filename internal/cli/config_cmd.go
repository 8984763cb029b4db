// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/disam-ia/disamia/internal/config"
	"github.com/disam-ia/disamia/internal/server"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration",
		Long: `Configuration lives in ~/.disamia/config.toml (DISAMIA_HOME moves the
directory). DISAMIA_* environment variables and .env files override the
file at load time; 'config set' edits the file only.`,
	}
	cmd.AddCommand(
		newConfigShowCommand(opts),
		newConfigPathCommand(opts),
		newConfigInitCommand(opts),
		newConfigGetCommand(opts),
		newConfigSetCommand(opts),
		newConfigKeysCommand(opts),
		newConfigHashTokenCommand(opts),
	)
	return cmd
}

func configPath(opts *rootOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	return config.ConfigPath()
}

// loadFileConfig reads the config file without environment overrides, so
// edits written back do not capture them.
func loadFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			return writeResult(cmd, opts, cfg, func(w io.Writer) {
				fmt.Fprint(w, cfg.String())
			})
		},
	}
}

func newConfigPathCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			return writeResult(cmd, opts, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintln(w, path)
			})
		},
	}
}

func newConfigInitCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			return writeResult(cmd, opts, map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "%s Wrote %s\n", RenderStatus(true), path)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective value, e.g. ollama.model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd, opts, map[string]interface{}{"key": args[0], "value": v}, func(w io.Writer) {
				fmt.Fprintln(w, v)
			})
		},
	}
}

func newConfigSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the config file",
		Example: `  disamia config set ollama.model llama3.2
  disamia config set storage.driver sqlite
  disamia config set server.allowed_origins "https://apsmuniarica.cl,http://localhost:3000"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			cfg, err := loadFileConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			v, _ := cfg.Get(args[0])
			return writeResult(cmd, opts, map[string]interface{}{"key": args[0], "value": v}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s = %v\n", RenderStatus(true), args[0], v)
			})
		},
	}
}

func newConfigKeysCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys accepted by get and set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := config.GetAllKeys()
			return writeResult(cmd, opts, keys, func(w io.Writer) {
				fmt.Fprintln(w, strings.Join(keys, "\n"))
			})
		},
	}
}

func newConfigHashTokenCommand(opts *rootOptions) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Hash an admin token for server.admin_token_hash",
		Long: `Hash-token prints the bcrypt hash of an admin token. The token is read from
the argument, or from stdin without echo. With --save the hash is written
to the config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			hash, err := server.HashToken(token, server.DefaultTokenCost)
			if err != nil {
				return err
			}

			var path string
			if save {
				if path, err = configPath(opts); err != nil {
					return err
				}
				cfg, err := loadFileConfig(path)
				if err != nil {
					return err
				}
				cfg.Server.AdminTokenHash = hash
				if err := config.Save(cfg, path); err != nil {
					return err
				}
			}

			return writeResult(cmd, opts, map[string]string{"hash": hash, "path": path}, func(w io.Writer) {
				fmt.Fprintln(w, hash)
				if save {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s Saved to %s\n", RenderStatus(true), path)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Write the hash to the config file")
	return cmd
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cmd.InOrStdin() == os.Stdin && IsTTY() {
		fmt.Fprint(cmd.ErrOrStderr(), "Admin token: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
