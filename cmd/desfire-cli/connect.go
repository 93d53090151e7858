package main

import (
	"fmt"

	"github.com/barnettlynn/desfire-go/pkg/desfire"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a reader and print its PC/SC name",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := desfire.Connect(readerIndex)
		if err != nil {
			return err
		}
		defer conn.Disconnect(nil)
		fmt.Printf("connected: %s\n", conn.Reader)
		return nil
	},
}
