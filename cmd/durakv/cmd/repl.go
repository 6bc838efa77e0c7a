package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/durakv/durakv/internal/client"
)

var replAddress string

// replCmd represents the repl command.
var replCmd = &cobra.Command{
	Use:          "repl",
	Short:        "Starts an interactive session against a running server.",
	Long: `Starts an interactive session against a running server.

Available commands:
  get <key>
  put <key> <value>
  delete <key>
  keys
  checkpoint
  quit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		kvClient, err := client.Dial(replAddress)
		if err != nil {
			return err
		}
		defer func() {
			if err := kvClient.Close(); err != nil {
				fmt.Println(err)
			}
		}()

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			if done := evalLine(kvClient, scanner.Text()); done {
				return nil
			}
		}
	},
}

// evalLine runs a single command line against the server. The return value reports if the session is over.
func evalLine(kvClient *client.Client, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	command := strings.ToLower(fields[0])
	switch {
	case command == "get" && len(fields) == 2:
		value, err := kvClient.Get(fields[1])
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				fmt.Printf("(key %q not found)\n", fields[1])
				return false
			}
			fmt.Println(err)
			return false
		}
		fmt.Println(string(value))
	case command == "put" && len(fields) >= 3:
		value := strings.Join(fields[2:], " ")
		if err := kvClient.Put(fields[1], []byte(value)); err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println("OK")
	case command == "delete" && len(fields) == 2:
		if err := kvClient.Delete(fields[1]); err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println("OK")
	case command == "keys" && len(fields) == 1:
		keys, err := kvClient.Keys()
		if err != nil {
			fmt.Println(err)
			return false
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		fmt.Printf("(%d keys)\n", len(keys))
	case command == "checkpoint" && len(fields) == 1:
		if err := kvClient.Checkpoint(); err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Println("OK")
	case command == "quit" && len(fields) == 1:
		return true
	default:
		fmt.Printf("unknown command %q, available commands are get, put, delete, keys, checkpoint, quit\n", line)
	}
	return false
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().StringVar(
		&replAddress,
		"address",
		"127.0.0.1:5555",
		"The address of the server to connect to.",
	)
}
