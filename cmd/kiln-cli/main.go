// Command kiln-cli is a one-shot TCP client for the kiln server, matching
// original_source/crates/kv-client: connect, issue one request, print the
// result, exit.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/arvindkrishnan/kiln/kvprotocol"
)

func main() {
	var port int

	root := &cobra.Command{
		Use:   "kiln-cli",
		Short: "command line client for kiln",
	}
	root.PersistentFlags().IntVar(&port, "port", 6210, "server port")

	root.AddCommand(
		getCmd(&port),
		setCmd(&port),
		delCmd(&port),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getCmd(port *int) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "fetch the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := dial(*port)
			if err != nil {
				return err
			}
			defer closeFn()

			value, ok, err := client.Get([]byte(args[0]))
			if err != nil {
				return fail(err)
			}
			if !ok {
				return fail(fmt.Errorf("not found"))
			}
			fmt.Println(string(value))
			return nil
		},
	}
}

func setCmd(port *int) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "set a key to a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := dial(*port)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := client.Set([]byte(args[0]), []byte(args[1])); err != nil {
				return fail(err)
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func delCmd(port *int) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := dial(*port)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := client.Delete([]byte(args[0])); err != nil {
				return fail(err)
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func dial(port int) (*kvprotocol.Client, func(), error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	wire := kvprotocol.NewConn(conn)
	return kvprotocol.NewClient(wire), func() { _ = conn.Close() }, nil
}

func fail(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	return err
}
