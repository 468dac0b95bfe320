/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// brokerctl is a small client for the broker's IPC endpoint, used by
// operators and test scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nettestlab/devicebroker/pkg/client"
)

var (
	socketPath     string
	requestTimeout time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "brokerctl",
		Short:        "Talk to the device connection broker",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&socketPath, "socket", "",
		"Broker socket path (defaults to $"+client.SocketEnvVar+")")
	root.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second,
		"Per-request timeout")

	root.AddCommand(pingCmd(), connectCmd(), execCmd(), disconnectCmd(), statusCmd())

	return root
}

// withClient dials the broker, runs fn with a bounded context, and
// closes the connection.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.Dial(socketPath)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	return fn(ctx, c)
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check broker liveness",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				if err := c.Ping(ctx); err != nil {
					return err
				}

				fmt.Println("pong")

				return nil
			})
		},
	}
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <hostname>",
		Short: "Establish a session to a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				ok, err := c.Connect(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Println(ok)

				return nil
			})
		},
	}
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <hostname> <command>",
		Short: "Run a command on a device (cached when fresh)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				output, err := c.Execute(ctx, args[0], args[1])
				if err != nil {
					return err
				}

				fmt.Print(output)

				return nil
			})
		},
	}
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <hostname>",
		Short: "Tear down a device session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				ok, err := c.Disconnect(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Println(ok)

				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show broker status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *client.Client) error {
				status, err := c.Status(ctx)
				if err != nil {
					return err
				}

				out, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}

				fmt.Println(string(out))

				return nil
			})
		},
	}
}
