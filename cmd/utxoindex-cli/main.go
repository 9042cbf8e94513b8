// utxoindex-cli is a command-line client for a utxoindexd query API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"

	"github.com/Klingon-tech/utxo-indexer/config"
	"github.com/Klingon-tech/utxo-indexer/internal/rpc"
	"github.com/Klingon-tech/utxo-indexer/internal/rpcclient"
	"github.com/Klingon-tech/utxo-indexer/internal/stats"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/internal/wallet"
	"github.com/Klingon-tech/utxo-indexer/pkg/block"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "utxoindex-cli",
		Usage:   "Query a utxoindexd node",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc",
				Value:   "http://127.0.0.1:3000",
				Usage:   "RPC endpoint URL",
				EnvVars: []string{"UTXOINDEX_RPC"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "request timeout",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON results",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show indexer height and state",
				Action: cmdInfo,
			},
			{
				Name:      "balance",
				Usage:     "Show an address's balance",
				ArgsUsage: "<address>",
				Action:    cmdBalance,
			},
			{
				Name:      "utxos",
				Usage:     "List an address's unspent outputs, smallest first",
				ArgsUsage: "<address>",
				Action:    cmdUTXOs,
			},
			{
				Name:      "select",
				Usage:     "Select inputs covering an amount in coins",
				ArgsUsage: "<address> <amount>",
				Action:    cmdSelect,
			},
			{
				Name:   "supply",
				Usage:  "Show the circulating supply",
				Action: cmdSupply,
			},
			{
				Name:  "holders",
				Usage: "Show the holder ranking",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1, Usage: "page number (1-based)"},
					&cli.IntFlag{Name: "limit", Value: stats.DefaultLimit, Usage: "holders per page"},
				},
				Action: cmdHolders,
			},
			{
				Name:   "commitment",
				Usage:  "Show the UTXO set commitment at the indexed height",
				Action: cmdCommitment,
			},
			{
				Name:      "block",
				Usage:     "Fetch a block from the indexer's source",
				ArgsUsage: "<height>",
				Action:    cmdBlock,
			},
			{
				Name:      "broadcast",
				Usage:     "Relay a signed raw transaction through the indexer's source",
				ArgsUsage: "<hex>",
				Action:    cmdBroadcast,
			},
		},
	}
}

// call issues one RPC with the global flags applied.
func call(c *cli.Context, method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	client := rpcclient.NewWithOptions(c.String("rpc"), rpcclient.Options{Timeout: c.Duration("timeout")})
	if err := client.Call(ctx, method, params, result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// printJSON prints v indented when --json is set and reports whether it did.
func printJSON(c *cli.Context, v interface{}) bool {
	if !c.Bool("json") {
		return false
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(c.App.Writer, string(out))
	return true
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

// formatCoins renders an amount in the smallest unit as coins.
func formatCoins(amount int64) string {
	return strconv.FormatFloat(btcutil.Amount(amount).ToBTC(), 'f', 8, 64)
}

// parseCoins parses a positive decimal coin amount into the smallest unit.
func parseCoins(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	amt, err := btcutil.NewAmount(f)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %v", s, err)
	}
	if amt <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return int64(amt), nil
}

// ── info ────────────────────────────────────────────────────────────────

func cmdInfo(c *cli.Context) error {
	var info rpc.IndexInfoResult
	if err := call(c, "index_getInfo", nil, &info); err != nil {
		return err
	}
	if printJSON(c, info) {
		return nil
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Chain:    %s\n", info.Chain)
	fmt.Fprintf(w, "Height:   %d\n", info.Height)
	fmt.Fprintf(w, "Genesis:  %d\n", info.GenesisHeight)
	fmt.Fprintf(w, "State:    %s\n", info.State)
	if info.LastError != "" {
		fmt.Fprintf(w, "Error:    %s\n", info.LastError)
	}
	return nil
}

// ── balance / utxos / select ────────────────────────────────────────────

func cmdBalance(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	var bal wallet.Balance
	if err := call(c, "utxo_getBalance", rpc.AddressParam{Address: c.Args().First()}, &bal); err != nil {
		return err
	}
	if printJSON(c, bal) {
		return nil
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Address:  %s\n", bal.Address)
	fmt.Fprintf(w, "Balance:  %s\n", formatCoins(bal.Balance))
	fmt.Fprintf(w, "UTXOs:    %d\n", bal.UTXOCount)
	fmt.Fprintf(w, "Height:   %d\n", bal.Height)
	return nil
}

func cmdUTXOs(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	var res rpc.UTXOListResult
	if err := call(c, "utxo_getByAddress", rpc.AddressParam{Address: c.Args().First()}, &res); err != nil {
		return err
	}
	if printJSON(c, res) {
		return nil
	}
	printUTXOs(c, res.UTXOs)
	fmt.Fprintf(c.App.Writer, "%d unspent outputs\n", len(res.UTXOs))
	return nil
}

func printUTXOs(c *cli.Context, utxos []*utxo.UTXO) {
	for _, u := range utxos {
		fmt.Fprintf(c.App.Writer, "%s:%d  %s  (height %d)\n", u.TxID, u.Vout, formatCoins(u.Amount), u.BlockHeight)
	}
}

func cmdSelect(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	amount, err := parseCoins(c.Args().Get(1))
	if err != nil {
		return err
	}
	var sel rpc.SelectCoinsResult
	params := rpc.SelectCoinsParam{Address: c.Args().First(), Amount: amount}
	if err := call(c, "utxo_selectCoins", params, &sel); err != nil {
		return err
	}
	if printJSON(c, sel) {
		return nil
	}
	if sel.CoinSelection == nil || sel.Insufficient {
		fmt.Fprintf(c.App.Writer, "Insufficient funds for %s\n", formatCoins(amount))
		return nil
	}
	printUTXOs(c, sel.Inputs)
	fmt.Fprintf(c.App.Writer, "Total:    %s\n", formatCoins(sel.Total))
	fmt.Fprintf(c.App.Writer, "Change:   %s\n", formatCoins(sel.Change))
	return nil
}

// ── supply / holders ────────────────────────────────────────────────────

func cmdSupply(c *cli.Context) error {
	var sup rpc.SupplyResult
	if err := call(c, "stats_getSupply", nil, &sup); err != nil {
		return err
	}
	if printJSON(c, sup) {
		return nil
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Supply:   %s\n", formatCoins(sup.Supply))
	fmt.Fprintf(w, "UTXOs:    %d\n", sup.UTXOCount)
	fmt.Fprintf(w, "Height:   %d\n", sup.Height)
	fmt.Fprintf(w, "Updated:  %s\n", sup.UpdatedAt.Format(time.RFC3339))
	return nil
}

func cmdHolders(c *cli.Context) error {
	var page stats.HoldersPage
	params := rpc.PageParam{Page: c.Int("page"), Limit: c.Int("limit")}
	if err := call(c, "stats_getHolders", params, &page); err != nil {
		return err
	}
	if printJSON(c, page) {
		return nil
	}
	for _, h := range page.Data {
		fmt.Fprintf(c.App.Writer, "%6d  %-40s  %s\n", h.Position, h.Address, formatCoins(h.Balance))
	}
	fmt.Fprintf(c.App.Writer, "page %d, %d of %d holders\n", page.Page, len(page.Data), page.Total)
	return nil
}

// ── commitment / block ──────────────────────────────────────────────────

func cmdCommitment(c *cli.Context) error {
	var res rpc.CommitmentResult
	if err := call(c, "index_getCommitment", nil, &res); err != nil {
		return err
	}
	if printJSON(c, res) {
		return nil
	}
	fmt.Fprintf(c.App.Writer, "%d %s\n", res.Height, res.Commitment)
	return nil
}

func cmdBlock(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	height, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid height %q", c.Args().First())
	}
	var b block.Block
	if err := call(c, "block_getByHeight", rpc.HeightParam{Height: height}, &b); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(b, "", "  ")
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func cmdBroadcast(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	var res rpc.BroadcastResult
	if err := call(c, "tx_broadcast", rpc.BroadcastParam{Hex: c.Args().First()}, &res); err != nil {
		return err
	}
	if printJSON(c, res) {
		return nil
	}
	fmt.Fprintln(c.App.Writer, res.TxID)
	return nil
}
