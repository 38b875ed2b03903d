// Command bridgectl operates a bridge custody ledger stored in a local
// database, verifying Bitcoin SPV proofs against a node's headers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var version = semver{major: 0, minor: 1, patch: 0}

type semver struct {
	major, minor, patch uint32
}

func (s semver) String() string {
	return fmt.Sprintf("%d.%d.%d", s.major, s.minor, s.patch)
}

type versionCmd struct{}

func (versionCmd) Execute([]string) error {
	fmt.Printf("bridgectl version %s\n", version)
	return nil
}

// command is one bridgectl subcommand.
type command struct {
	name, short, long string
	data              interface{}
}

var commands = []command{
	{"deposit-address", "Print a deposit script and its addresses",
		"Derives the P2SH and P2WSH deposit addresses from a reveal request. Works offline.", &depositAddressCmd{}},
	{"register-wallet", "Register a new Live wallet", "", &registerWalletCmd{}},
	{"reveal", "Reveal a deposit funding transaction", "", &revealCmd{}},
	{"sweep", "Submit a deposit sweep proof", "", &sweepCmd{}},
	{"request-redemption", "Request a redemption from a wallet",
		"The redeemer is paid to redeemer_output_script or, when set, redeemer_address.", &requestRedemptionCmd{}},
	{"redeem", "Submit a redemption proof", "", &redeemCmd{}},
	{"timeout-redemption", "Report a redemption that was not paid in time", "", &timeoutRedemptionCmd{}},
	{"begin-moving-funds", "Move a Live wallet to MovingFunds", "", &beginMovingFundsCmd{}},
	{"commit-moving-funds", "Submit a moving-funds target wallets commitment", "", &commitMovingFundsCmd{}},
	{"move-funds", "Submit a moving-funds proof", "", &moveFundsCmd{}},
	{"moving-funds-below-dust", "Report a wallet whose main UTXO is below the moving-funds dust", "", &movingFundsBelowDustCmd{}},
	{"sweep-moved-funds", "Submit a moved-funds sweep proof", "", &sweepMovedFundsCmd{}},
	{"close-wallet", "Close a wallet whose closing period elapsed", "", &closeWalletCmd{}},
	{"deposit", "Show a deposit", "", &depositQueryCmd{}},
	{"wallet", "Show a wallet", "", &walletQueryCmd{}},
	{"balance", "Show an account balance", "", &balanceCmd{}},
	{"redemption", "Show a pending or timed out redemption", "", &redemptionQueryCmd{}},
	{"moved-funds-sweep", "Show a moved-funds sweep request", "", &movedFundsSweepQueryCmd{}},
	{"version", "Print the version", "", &versionCmd{}},
}

func newParser() (*flags.Parser, error) {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return nil, fmt.Errorf("add command %s: %w", c.name, err)
		}
	}
	return parser, nil
}

func main() {
	parser, err := newParser()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Println(err)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}
