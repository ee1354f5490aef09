package main

import (
	"github.com/spf13/cobra"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/worker"
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(trialBalanceCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(budgetsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)

	ledgerCmd.Flags().String("from", "", "Start of the window (YYYY-MM-DD, RFC 3339 or Unix ms)")
	ledgerCmd.Flags().String("to", "", "End of the window, inclusive")
	trialBalanceCmd.Flags().String("as-of", "", "Include entries up to this time, inclusive")
	budgetCmd.Flags().String("reference", "", "Evaluate through the period containing this time (default now)")
	budgetCmd.Flags().Int("extra", 0, "Additional future periods")
	summaryCmd.Flags().String("from", "", "Start of the window")
	summaryCmd.Flags().String("to", "", "End of the window, inclusive")
	summaryCmd.Flags().StringP("currency", "c", "", "Currency id (required)")
	_ = summaryCmd.MarkFlagRequired("currency")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger ACCOUNT_ID",
	Short: "Print the ledger of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := epochFlag(cmd, "from", false)
		if err != nil {
			return err
		}
		to, err := epochFlag(cmd, "to", true)
		if err != nil {
			return err
		}
		res, err := app.Aggregation.Ledger(cmd.Context(), args[0], ledger.Between(from, to))
		if err != nil {
			return err
		}
		if format == formatJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		return printLedger(cmd.OutOrStdout(), res)
	},
}

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Print the trial balance per currency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := epochFlag(cmd, "as-of", true)
		if err != nil {
			return err
		}
		res, err := app.Aggregation.TrialBalance(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		if format == formatJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		return printTrialBalance(cmd.OutOrStdout(), res)
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget BUDGET_ID",
	Short: "Print the periods of a rolling budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reference, err := epochFlag(cmd, "reference", false)
		if err != nil {
			return err
		}
		if reference == 0 {
			reference = core.EpochOf(now())
		}
		extra, _ := cmd.Flags().GetInt("extra")
		if extra < 0 {
			extra = 0
		}
		res, err := app.Aggregation.BudgetPeriods(cmd.Context(), args[0], reference, extra)
		if err != nil {
			return err
		}
		if format == formatJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		return printBudget(cmd.OutOrStdout(), res)
	},
}

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "List budget definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		budgets, err := app.Aggregation.Budgets(cmd.Context())
		if err != nil {
			return err
		}
		if format == formatJSON {
			return printJSON(cmd.OutOrStdout(), budgets)
		}
		return printBudgets(cmd.OutOrStdout(), budgets)
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print income, expenses and wallet balances for a currency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := epochFlag(cmd, "from", false)
		if err != nil {
			return err
		}
		to, err := epochFlag(cmd, "to", true)
		if err != nil {
			return err
		}
		currencyID, _ := cmd.Flags().GetString("currency")
		res, err := app.Aggregation.Summary(cmd.Context(), from, to, currencyID)
		if err != nil {
			return err
		}
		if format == formatJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		return printSummary(cmd.OutOrStdout(), res)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Recalculate and write the trial balance and budget periods to the report sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := worker.NewRecalcWorker(app.Aggregation, app.Backend.Reports, nil, app.Logger)
		return w.Recalculate(cmd.Context())
	},
}
