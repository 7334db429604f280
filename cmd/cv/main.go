package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/soulfra/chainvault/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

// errCorrupted signals a failed verification. The report has already been
// printed by the time it propagates, so main maps it to the exit code
// without printing it again.
var errCorrupted = errors.New("chain verification failed")

var (
	serverURL string
	cfgFile   string
	asJSON    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCorrupted) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cv",
	Short: "chainvault CLI",
	Long: `cv is the command-line interface for chainvault.

It appends transactions to tamper-evident domain ledgers, verifies chain
integrity, and replicates chains across domains through a vaultd server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.chainvault")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.chainvault/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "vaultd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON instead of tables")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(serveStoreCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithCacheTTL(time.Minute))
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ── append ───────────────────────────────────────────────────────────────────

var appendCmd = &cobra.Command{
	Use:   "append <domain> <json-payload>",
	Short: "Append a transaction to a domain's ledger",
	Long: `Append adds one transaction carrying the given JSON payload and syncs
the full chain to the domain's remote container:

  cv append orders '{"sku":"X-17","qty":3}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, payload := args[0], args[1]
		if !json.Valid([]byte(payload)) {
			return fmt.Errorf("payload is not valid JSON: %s", payload)
		}

		ctx, cancel := cmdContext()
		defer cancel()

		res, err := newClient().Append(ctx, domain, json.RawMessage(payload))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}

		state := "extended"
		if res.IsNew {
			state = "created"
		}
		fmt.Printf("%s: chain %s (%d entries)\n", domain, state, res.ChainLen)
		fmt.Printf("  tx        %s\n", res.Transaction.ID)
		fmt.Printf("  signature %s\n", res.Transaction.Signature)
		fmt.Printf("  container %s\n", res.ContainerID)
		return nil
	},
}

// ── chain ────────────────────────────────────────────────────────────────────

var chainCmd = &cobra.Command{
	Use:   "chain <domain>",
	Short: "Print a domain's full transaction chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		txs, err := newClient().Chain(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(txs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tTIMESTAMP\tSIGNATURE\tDATA")
		for i, tx := range txs {
			ts := time.UnixMilli(tx.Timestamp).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, "%d\t%s\t%s\t%.16s…\t%s\n", i, tx.ID, ts, tx.Signature, tx.Data)
		}
		return w.Flush()
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <domain>",
	Short: "Verify the integrity of a domain's chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		report, err := newClient().Verify(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			if err := printJSON(report); err != nil {
				return err
			}
			if report.Valid {
				return nil
			}
			return errCorrupted
		}

		if report.Valid {
			fmt.Printf("%s: OK (%d entries)\n", args[0], report.Entries)
			return nil
		}
		fmt.Printf("%s: CORRUPTED — %s at index %d\n", args[0], report.Reason, report.FailedIndex)
		return errCorrupted
	},
}

// ── broadcast ────────────────────────────────────────────────────────────────

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <source-domain> <target-domain> [target-domain...]",
	Short: "Replicate a domain's chain into other domains' containers",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		results, err := newClient().Broadcast(ctx, args[0], args[1:])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(results)
		}

		failed := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tCONTAINER\tSTATUS")
		for _, target := range args[1:] {
			r := results[target]
			status := "updated"
			if r.IsNew {
				status = "created"
			}
			if r.Error != "" {
				status = "FAILED: " + r.Error
				failed++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", target, r.ContainerID, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d targets failed", failed, len(args)-1)
		}
		return nil
	},
}

// ── domains ──────────────────────────────────────────────────────────────────

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List registered domains and their container ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext()
		defer cancel()

		all, err := newClient().Domains(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(all)
		}

		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tCONTAINER")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, all[name])
		}
		return w.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cv version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cv", version)
	},
}
