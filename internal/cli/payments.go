package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Record and correct invoice payments",
	Long: `Add, change, move, refund, and remove payments.

A completed payment on a paid invoice cannot be removed or moved; refund it instead.`,
}

var paymentsListCmd = &cobra.Command{
	Use:   "list [invoice_id]",
	Short: "List payments on an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}

		payments, err := appInstance.PaymentService.ListPayments(context.Background(), appInstance.Caller, id)
		if err != nil {
			return fmt.Errorf("failed to list payments: %w", err)
		}

		if len(payments) == 0 {
			fmt.Println("No payments recorded")
			return nil
		}

		fmt.Printf("%-5s %-12s %-12s %-14s %-10s %s\n", "ID", "Date", "Amount", "Method", "Status", "Reference")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, p := range payments {
			fmt.Printf("%-5d %-12s %-12s %-14s %-10s %s\n",
				p.ID, p.Date.Format("2006-01-02"), domain.Money(p.Amount), p.Method, p.Status, p.TransactionRef)
		}
		return nil
	},
}

var paymentsAddCmd = &cobra.Command{
	Use:   "add [invoice_id] [amount]",
	Short: "Record a payment against an invoice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		in := service.PaymentInput{Amount: amount}
		methodStr, _ := cmd.Flags().GetString("method")
		if in.Method, err = domain.ParsePaymentMethod(methodStr); err != nil {
			return err
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			if in.Status, err = domain.ParsePaymentStatus(s); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("date") {
			s, _ := cmd.Flags().GetString("date")
			if in.Date, err = parseDate(s); err != nil {
				return fmt.Errorf("invalid payment date: %w", err)
			}
		}
		in.TransactionRef, _ = cmd.Flags().GetString("ref")
		in.Notes, _ = cmd.Flags().GetString("notes")

		invoice, err := appInstance.PaymentService.AddPayment(ctx, appInstance.Caller, id, in)
		if err != nil {
			return fmt.Errorf("failed to add payment: %w", err)
		}

		fmt.Printf("✓ Payment of %s recorded on %s (%s)\n", domain.FormatAmount(amount, invoice.CurrencyOrDefault()), invoice.InvoiceNumber, invoice.Status)
		printTotals(invoice)
		return nil
	},
}

var paymentsUpdateCmd = &cobra.Command{
	Use:   "update [payment_id]",
	Short: "Change a payment or move it to another invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment ID: %w", err)
		}

		var changes billing.PaymentUpdate
		if cmd.Flags().Changed("amount") {
			amount, err := decimalFlag(cmd, "amount")
			if err != nil {
				return err
			}
			changes.Amount = &amount
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			status, err := domain.ParsePaymentStatus(s)
			if err != nil {
				return err
			}
			changes.Status = &status
		}
		if cmd.Flags().Changed("method") {
			s, _ := cmd.Flags().GetString("method")
			method, err := domain.ParsePaymentMethod(s)
			if err != nil {
				return err
			}
			changes.Method = &method
		}
		if cmd.Flags().Changed("date") {
			s, _ := cmd.Flags().GetString("date")
			date, err := parseDate(s)
			if err != nil {
				return fmt.Errorf("invalid payment date: %w", err)
			}
			changes.Date = &date
		}
		if cmd.Flags().Changed("ref") {
			ref, _ := cmd.Flags().GetString("ref")
			changes.TransactionRef = &ref
		}
		if cmd.Flags().Changed("notes") {
			notes, _ := cmd.Flags().GetString("notes")
			changes.Notes = &notes
		}

		var moveTo *int64
		if cmd.Flags().Changed("move-to") {
			target, _ := cmd.Flags().GetInt64("move-to")
			moveTo = &target
		}

		payment, err := appInstance.PaymentService.UpdatePayment(ctx, appInstance.Caller, id, changes, moveTo)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		fmt.Printf("✓ Payment #%d: %s %s on invoice #%d\n", payment.ID, domain.Money(payment.Amount), payment.Status, payment.InvoiceID)
		return nil
	},
}

var paymentsRefundCmd = &cobra.Command{
	Use:   "refund [payment_id]",
	Short: "Refund a completed payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment ID: %w", err)
		}

		invoice, err := appInstance.PaymentService.RefundPayment(context.Background(), appInstance.Caller, id)
		if err != nil {
			return fmt.Errorf("failed to refund payment: %w", err)
		}

		fmt.Printf("✓ Payment #%d refunded; %s is %s\n", id, invoice.InvoiceNumber, invoice.Status)
		printTotals(invoice)
		return nil
	},
}

var paymentsRemoveCmd = &cobra.Command{
	Use:   "remove [payment_id]",
	Short: "Remove a payment recorded in error",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment ID: %w", err)
		}

		invoice, err := appInstance.PaymentService.RemovePayment(context.Background(), appInstance.Caller, id)
		if err != nil {
			return fmt.Errorf("failed to remove payment: %w", err)
		}

		fmt.Printf("✓ Payment #%d removed from %s\n", id, invoice.InvoiceNumber)
		printTotals(invoice)
		return nil
	},
}

func init() {
	paymentsCmd.AddCommand(paymentsListCmd)
	paymentsCmd.AddCommand(paymentsAddCmd)
	paymentsCmd.AddCommand(paymentsUpdateCmd)
	paymentsCmd.AddCommand(paymentsRefundCmd)
	paymentsCmd.AddCommand(paymentsRemoveCmd)

	// Add flags
	paymentsAddCmd.Flags().String("method", string(domain.PaymentMethodBankTransfer), "Payment method")
	paymentsAddCmd.Flags().String("status", "", "Payment status (defaults to completed)")
	paymentsAddCmd.Flags().String("date", "", "Payment date (defaults to today)")
	paymentsAddCmd.Flags().String("ref", "", "Transaction reference (generated if empty)")
	paymentsAddCmd.Flags().String("notes", "", "Notes")

	// Update flags
	paymentsUpdateCmd.Flags().String("amount", "", "New amount")
	paymentsUpdateCmd.Flags().String("status", "", "New status")
	paymentsUpdateCmd.Flags().String("method", "", "New method")
	paymentsUpdateCmd.Flags().String("date", "", "New date")
	paymentsUpdateCmd.Flags().String("ref", "", "New transaction reference")
	paymentsUpdateCmd.Flags().String("notes", "", "New notes")
	paymentsUpdateCmd.Flags().Int64("move-to", 0, "Move the payment to this invoice ID")
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("expected a decimal number, got %q", s)
	}
	return d, nil
}
