package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "inspect [agent-name]",
		Short: "Query a running jackd process's debug HTTP endpoint",
		Long:  "inspect talks to a running jackd's --debug-http-addr endpoint: with no argument it lists live agents and teams, with one it prints that entity's current intentions and auctions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			path := "/agents"
			if len(args) == 1 {
				path = "/agents/" + args[0]
			}
			resp, err := client.Get("http://" + addr + path)
			if err != nil {
				return fmt.Errorf("inspect: %w (is jackd running with --debug-http-addr?)", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("inspect: %s: %s", resp.Status, string(body))
			}

			var pretty interface{}
			if err := json.Unmarshal(body, &pretty); err != nil {
				return err
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:6061", "target jackd's debug http address")
	return cmd
}
