package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/ledger"
)

var spendKey string
var viewKey string
var payNote string
var payPositionID uint64

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Sends a stealth payment to a meta-address",
	Long: `Sends a stealth payment to the meta-address given by its spend and
view public keys. The payment is published to the local ledger where the
recipient can discover it by scanning.`,
	Run: func(cmd *cobra.Command, args []string) {
		spendPub, err := stealth.DecodeAddress(spendKey)
		if err != nil {
			fmt.Printf("invalid spend key: %v\n", err)
			os.Exit(1)
		}

		viewPub, err := stealth.DecodeAddress(viewKey)
		if err != nil {
			fmt.Printf("invalid view key: %v\n", err)
			os.Exit(1)
		}

		meta := &stealth.MetaAddress{
			SpendPublicKey: spendPub,
			ViewPublicKey:  viewPub,
		}

		payment, err := stealth.GenerateStealthPayment(meta, []byte(payNote))
		if err != nil {
			fmt.Printf("could not generate payment: %v\n", err)
			os.Exit(1)
		}

		localLedger, closeLedger := openLedger()
		defer closeLedger()

		err = localLedger.PublishPayment(
			context.Background(),
			&ledger.StealthPaymentEvent{
				StealthAddress:     [32]byte(payment.StealthAddress),
				EphemeralPublicKey: [32]byte(payment.EphemeralPublicKey),
				EncryptedPayload:   payment.EncryptedPayload,
				PositionID:         payPositionID,
				Timestamp:          time.Now().Unix(),
			},
		)
		if err != nil {
			fmt.Printf("could not publish payment: %v\n", err)
			os.Exit(1)
		}

		address, err := stealth.EncodeAddress(payment.StealthAddress)
		if err != nil {
			fmt.Printf("could not encode stealth address: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Published payment to %s\n", address)
	},
}

func init() {
	payCmd.Flags().StringVar(
		&spendKey,
		"spend",
		"",
		"recipient spend public key (base58)",
	)
	payCmd.Flags().StringVar(
		&viewKey,
		"view",
		"",
		"recipient view public key (base58)",
	)
	payCmd.Flags().StringVar(&payNote, "note", "", "note to carry in the payload")
	payCmd.Flags().Uint64Var(
		&payPositionID,
		"position",
		0,
		"vesting position the payment refers to",
	)
	payCmd.MarkFlagRequired("spend")
	payCmd.MarkFlagRequired("view")
}
