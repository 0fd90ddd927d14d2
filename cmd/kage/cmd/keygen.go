package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/louissarvin/kage-sub000/stealth"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <key-id>",
	Short: "Creates a stealth meta keypair",
	Long: `Creates a stealth meta keypair under the given id and prints the
public meta-address. Share the meta-address with senders; the private
halves stay in the key store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keyManager := openKeyManager()

		pair, err := keyManager.CreateMetaKeyPair(args[0])
		if err != nil {
			fmt.Printf("could not create keypair: %v\n", err)
			os.Exit(1)
		}

		spend, err := stealth.EncodeAddress(pair.MetaAddress.SpendPublicKey)
		if err != nil {
			fmt.Printf("could not encode spend key: %v\n", err)
			os.Exit(1)
		}

		view, err := stealth.EncodeAddress(pair.MetaAddress.ViewPublicKey)
		if err != nil {
			fmt.Printf("could not encode view key: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Key ID: %s\n", args[0])
		fmt.Printf("Spend Public Key: %s\n", spend)
		fmt.Printf("View Public Key: %s\n", view)
	},
}
