package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/louissarvin/kage-sub000/config"
	"github.com/louissarvin/kage-sub000/keys"
	"github.com/louissarvin/kage-sub000/store"
)

var configPath string
var debug bool

var NodeConfig *config.Config
var Logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "kage",
	Short: "Stealth payment client",
	Long: `kage is a command-line tool for stealth payments and confidential
claim authorization. It manages meta-address keys, sends payments to
meta-addresses, and scans published payments for ones addressed to you.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "help" {
			return
		}

		var err error
		NodeConfig, err = config.LoadConfig(configPath)
		if err != nil {
			fmt.Printf("invalid config file: %s\n", configPath)
			os.Exit(1)
		}

		Logger, err = NodeConfig.CreateLogger(debug)
		if err != nil {
			fmt.Printf("could not create logger: %v\n", err)
			os.Exit(1)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		".kage/config.yml",
		"config file (default is .kage/config.yml)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&debug,
		"debug",
		false,
		"enable debug logging",
	)

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(scanCmd)
}

func openKeyManager() *keys.FileKeyManager {
	return keys.NewFileKeyManager(NodeConfig, Logger)
}

func openLedger() (*store.LocalLedger, func()) {
	var db store.KVDB
	var err error
	if NodeConfig.DB.InMemory {
		db, err = store.NewInMemoryDB()
	} else {
		db, err = store.NewPebbleDB(NodeConfig.DB.Path)
	}
	if err != nil {
		fmt.Printf("could not open store: %v\n", err)
		os.Exit(1)
	}

	ledger := store.NewLocalLedger(Logger, db, store.NewDevProver())
	return ledger, func() {
		if err := db.Close(); err != nil {
			Logger.Error("could not close store", zap.Error(err))
		}
	}
}
