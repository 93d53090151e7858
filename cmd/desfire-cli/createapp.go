package main

import (
	"fmt"

	"github.com/barnettlynn/desfire-go/pkg/desfire"
	"github.com/spf13/cobra"
)

var (
	createAppAID         string
	createAppKeySettings uint8
	createAppNumKeys     uint8
)

var createAppCmd = &cobra.Command{
	Use:   "create-app",
	Short: "Create an application at PICC level",
	RunE: func(cmd *cobra.Command, args []string) error {
		aid, err := parseAID(createAppAID)
		if err != nil {
			return err
		}
		conn, sess, err := connectAndAuth()
		if err != nil {
			return err
		}
		defer conn.Disconnect(sess)

		if err := desfire.CreateApplication(conn, sess, aid, createAppKeySettings, createAppNumKeys); err != nil {
			return fmt.Errorf("create application: %w", err)
		}
		fmt.Printf("created application %x\n", aid)
		return nil
	},
}

func init() {
	createAppCmd.Flags().StringVar(&createAppAID, "aid", "", "application ID, 3 hex bytes")
	createAppCmd.Flags().Uint8Var(&createAppKeySettings, "key-settings", 0x0F, "key settings byte")
	createAppCmd.Flags().Uint8Var(&createAppNumKeys, "num-keys", 1, "number of keys, low nibble carries key type bits")
	createAppCmd.MarkFlagRequired("aid")
}
