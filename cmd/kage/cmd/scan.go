package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/louissarvin/kage-sub000/stealth"
)

var scanSince int64

var scanCmd = &cobra.Command{
	Use:   "scan <key-id>",
	Short: "Scans published payments for ones addressed to you",
	Long: `Scans published payments with the view key stored under the given
id and prints every payment addressed to the corresponding meta-address,
together with the recovered note.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keyManager := openKeyManager()

		pair, err := keyManager.GetMetaKeyPair(args[0])
		if err != nil {
			fmt.Printf("could not load keypair %s: %v\n", args[0], err)
			os.Exit(1)
		}

		localLedger, closeLedger := openLedger()
		defer closeLedger()

		ctx := context.Background()

		events, err := localLedger.ListPayments(ctx, scanSince)
		if err != nil {
			fmt.Printf("could not list payments: %v\n", err)
			os.Exit(1)
		}

		candidates := make([]*stealth.Payment, len(events))
		for i, event := range events {
			candidates[i] = &stealth.Payment{
				StealthAddress:     event.StealthAddress[:],
				EphemeralPublicKey: event.EphemeralPublicKey[:],
				EncryptedPayload:   event.EncryptedPayload,
			}
		}

		matches, err := stealth.ScanForOwnedPayments(
			ctx,
			Logger,
			pair.ViewPrivateKey,
			pair.MetaAddress.SpendPublicKey,
			candidates,
		)
		if err != nil {
			fmt.Printf("scan failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Scanned %d payments, %d addressed to you\n",
			len(candidates),
			len(matches),
		)

		for _, match := range matches {
			address, err := stealth.EncodeAddress(match.StealthAddress)
			if err != nil {
				continue
			}

			_, note, err := stealth.RecoverStealthSigner(pair, match)
			if err != nil {
				fmt.Printf("%s (payload could not be recovered: %v)\n", address, err)
				continue
			}

			fmt.Printf("%s note=%q\n", address, string(note))
		}
	},
}

func init() {
	scanCmd.Flags().Int64Var(
		&scanSince,
		"since",
		0,
		"only scan payments published at or after this unix timestamp",
	)
}
