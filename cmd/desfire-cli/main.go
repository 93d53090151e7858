// Command desfire-cli is a thin sample exercising the desfire package
// against a real PC/SC reader: connect, authenticate, select an
// application and read a file, or create an application. It is not part of the library's
// public surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	readerIndex int
	keyHex      string
	keyNo       int
	keyTypeName string
)

var rootCmd = &cobra.Command{
	Use:     "desfire-cli",
	Short:   "Sample CLI over the desfire package",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", 0, "PC/SC reader index")
	rootCmd.PersistentFlags().StringVarP(&keyHex, "key", "k", "", "authentication key, hex-encoded")
	rootCmd.PersistentFlags().IntVar(&keyNo, "key-no", 0, "key number to authenticate with")
	rootCmd.PersistentFlags().StringVar(&keyTypeName, "key-type", "aes", "key type: des, 2k3des, 3k3des, aes")

	rootCmd.AddCommand(connectCmd, authCmd, readCmd, createAppCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
