package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate against the currently selected application",
	Long:  "Connect, authenticate with --key/--key-no/--key-type, and report the resulting session state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keyHex == "" {
			return fmt.Errorf("--key is required")
		}
		conn, sess, err := connectAndAuth()
		if err != nil {
			return err
		}
		defer conn.Disconnect(sess)
		fmt.Printf("authenticated: key_type=%s key_no=%d\n", sess.KeyType(), sess.KeyNo())
		return nil
	},
}
