package main

import (
	"encoding/hex"
	"fmt"

	"github.com/barnettlynn/desfire-go/pkg/desfire"
	"github.com/spf13/cobra"
)

var (
	readAID    string
	readFileNo int
	readOffset uint32
	readLength uint32
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Select an application and read a standard data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		aid, err := parseAID(readAID)
		if err != nil {
			return err
		}
		conn, sess, err := connectAndAuth()
		if err != nil {
			return err
		}
		defer conn.Disconnect(sess)

		if err := desfire.SelectApplication(conn, sess, aid); err != nil {
			return fmt.Errorf("select application: %w", err)
		}
		data, err := desfire.ReadData(conn, sess, byte(readFileNo), readOffset, readLength)
		if err != nil {
			return fmt.Errorf("read data: %w", err)
		}
		fmt.Println(hex.EncodeToString(data))
		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&readAID, "aid", "", "application ID, 3 hex bytes")
	readCmd.Flags().IntVar(&readFileNo, "file", 0, "file number")
	readCmd.Flags().Uint32Var(&readOffset, "offset", 0, "read offset")
	readCmd.Flags().Uint32Var(&readLength, "length", 0, "bytes to read (0 = whole file)")
	readCmd.MarkFlagRequired("aid")
}
