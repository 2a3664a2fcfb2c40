package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/service"
	"github.com/spf13/cobra"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Manage invoices",
	Long:  `Create, list, and manage invoices through draft, sent, paid and cancelled.`,
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var projectID *int64
		if cmd.Flags().Changed("project") {
			s, _ := cmd.Flags().GetString("project")
			project, err := resolveProject(ctx, s)
			if err != nil {
				return err
			}
			projectID = &project.ID
		}

		var status *domain.InvoiceStatus
		if cmd.Flags().Changed("status") {
			statusStr, _ := cmd.Flags().GetString("status")
			s, err := domain.ParseInvoiceStatus(statusStr)
			if err != nil {
				return err
			}
			status = &s
		}

		invoices, err := appInstance.InvoiceService.ListInvoices(ctx, appInstance.Caller, projectID, status)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}

		if len(invoices) == 0 {
			fmt.Println("No invoices found")
			return nil
		}

		fmt.Printf("%-5s %-15s %-12s %-12s %-12s %-12s %-10s %s\n", "ID", "Number", "Due", "Total", "Paid", "Due Amt", "Status", "Currency")
		fmt.Println("--------------------------------------------------------------------------------------")

		for _, invoice := range invoices {
			fmt.Printf("%-5d %-15s %-12s %-12s %-12s %-12s %-10s %s\n",
				invoice.ID,
				invoice.InvoiceNumber,
				formatOptionalDate(invoice.DueDate),
				domain.Money(invoice.Amount),
				domain.Money(invoice.AmountPaid),
				domain.Money(invoice.AmountDue),
				invoice.Status,
				invoice.CurrencyOrDefault(),
			)
		}

		fmt.Printf("\nTotal: %d invoice(s)\n", len(invoices))
		return nil
	},
}

var invoicesCreateCmd = &cobra.Command{
	Use:   "create [project_id_or_name]",
	Short: "Create a new draft invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		opts := service.DraftOptions{ProjectID: project.ID}
		if cmd.Flags().Changed("issue") {
			s, _ := cmd.Flags().GetString("issue")
			if opts.IssueDate, err = parseDate(s); err != nil {
				return fmt.Errorf("invalid issue date: %w", err)
			}
		}
		if cmd.Flags().Changed("due-days") {
			days, _ := cmd.Flags().GetInt("due-days")
			opts.DueDays = &days
		}
		if opts.TaxRate, err = nullDecimalFlag(cmd, "tax"); err != nil {
			return err
		}
		if opts.Discount, err = decimalFlag(cmd, "discount"); err != nil {
			return err
		}
		opts.Currency, _ = cmd.Flags().GetString("currency")
		opts.Notes, _ = cmd.Flags().GetString("notes")

		invoice, err := appInstance.InvoiceService.CreateDraft(ctx, appInstance.Caller, opts)
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		fmt.Printf("✓ Draft invoice created: %s (ID: %d)\n", invoice.InvoiceNumber, invoice.ID)
		fmt.Printf("  Project: %s\n", project.Name)
		fmt.Printf("  Issued: %s, due %s\n", invoice.IssueDate.Format("2006-01-02"), formatOptionalDate(invoice.DueDate))

		return nil
	},
}

var invoicesAddItemCmd = &cobra.Command{
	Use:   "add-item [invoice_id] [description] [quantity] [unit_price]",
	Short: "Add a line item to a draft invoice",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		invoiceID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}
		quantity, err := parseAmount(args[2])
		if err != nil {
			return fmt.Errorf("invalid quantity: %w", err)
		}
		price, err := parseAmount(args[3])
		if err != nil {
			return fmt.Errorf("invalid unit price: %w", err)
		}

		invoice, err := appInstance.InvoiceService.AddLineItem(ctx, appInstance.Caller, invoiceID, domain.NewLineItem(args[1], quantity, price))
		if err != nil {
			return fmt.Errorf("failed to add line item: %w", err)
		}

		fmt.Printf("✓ Added line item to %s\n", invoice.InvoiceNumber)
		printTotals(invoice)
		return nil
	},
}

var invoicesUpdateItemCmd = &cobra.Command{
	Use:   "update-item [invoice_id] [item_id]",
	Short: "Change a line item on a draft invoice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		var changes billing.LineItemUpdate
		if cmd.Flags().Changed("description") {
			description, _ := cmd.Flags().GetString("description")
			changes.Description = &description
		}
		if cmd.Flags().Changed("quantity") {
			quantity, err := decimalFlag(cmd, "quantity")
			if err != nil {
				return err
			}
			changes.Quantity = &quantity
		}
		if cmd.Flags().Changed("price") {
			price, err := decimalFlag(cmd, "price")
			if err != nil {
				return err
			}
			changes.UnitPrice = &price
		}

		invoice, err := appInstance.InvoiceService.UpdateLineItem(ctx, appInstance.Caller, ids[0], ids[1], changes)
		if err != nil {
			return fmt.Errorf("failed to update line item: %w", err)
		}

		fmt.Printf("✓ Updated line item %d on %s\n", ids[1], invoice.InvoiceNumber)
		printTotals(invoice)
		return nil
	},
}

var invoicesRemoveItemCmd = &cobra.Command{
	Use:   "remove-item [invoice_id] [item_id]",
	Short: "Remove a line item from a draft invoice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		invoice, err := appInstance.InvoiceService.RemoveLineItem(ctx, appInstance.Caller, ids[0], ids[1])
		if err != nil {
			return fmt.Errorf("failed to remove line item: %w", err)
		}

		fmt.Printf("✓ Removed line item %d from %s\n", ids[1], invoice.InvoiceNumber)
		printTotals(invoice)
		return nil
	},
}

var invoicesAddEntriesCmd = &cobra.Command{
	Use:   "add-entries [invoice_id] [entry_ids...]",
	Short: "Bill time entries on a draft invoice",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		invoice, err := appInstance.InvoiceService.AddEntriesToInvoice(ctx, appInstance.Caller, ids[0], ids[1:])
		if err != nil {
			return fmt.Errorf("failed to add entries: %w", err)
		}

		fmt.Printf("✓ Added %d entries to %s\n", len(ids)-1, invoice.InvoiceNumber)
		printTotals(invoice)
		return nil
	},
}

var invoicesTaxCmd = &cobra.Command{
	Use:   "adjust [invoice_id]",
	Short: "Set tax rate and discount on a draft invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}
		current, err := appInstance.InvoiceService.GetInvoice(ctx, appInstance.Caller, id)
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		taxRate, discount := current.TaxRate, current.Discount
		if cmd.Flags().Changed("tax") {
			if taxRate, err = nullDecimalFlag(cmd, "tax"); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("discount") {
			if discount, err = decimalFlag(cmd, "discount"); err != nil {
				return err
			}
		}

		invoice, err := appInstance.InvoiceService.SetTaxAndDiscount(ctx, appInstance.Caller, id, taxRate, discount)
		if err != nil {
			return fmt.Errorf("failed to adjust invoice: %w", err)
		}

		printTotals(invoice)
		return nil
	},
}

var invoicesSendCmd = &cobra.Command{
	Use:   "send [id]",
	Short: "Mark a draft invoice as sent",
	Args:  cobra.ExactArgs(1),
	RunE: invoiceTransition("send", func(ctx context.Context, id int64, _ *cobra.Command) (*domain.Invoice, error) {
		return appInstance.InvoiceService.Send(ctx, appInstance.Caller, id)
	}),
}

var invoicesMarkViewedCmd = &cobra.Command{
	Use:   "mark-viewed [id]",
	Short: "Record that the client viewed a sent invoice",
	Args:  cobra.ExactArgs(1),
	RunE: invoiceTransition("mark viewed", func(ctx context.Context, id int64, _ *cobra.Command) (*domain.Invoice, error) {
		return appInstance.InvoiceService.MarkViewed(ctx, appInstance.Caller, id)
	}),
}

var invoicesMarkPaidCmd = &cobra.Command{
	Use:   "mark-paid [id]",
	Short: "Record a payment for the full outstanding amount",
	Args:  cobra.ExactArgs(1),
	RunE: invoiceTransition("mark paid", func(ctx context.Context, id int64, cmd *cobra.Command) (*domain.Invoice, error) {
		var paidDate time.Time
		if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
			var err error
			if paidDate, err = parseDate(dateStr); err != nil {
				return nil, fmt.Errorf("invalid paid date: %w", err)
			}
		}
		methodStr, _ := cmd.Flags().GetString("method")
		method, err := domain.ParsePaymentMethod(methodStr)
		if err != nil {
			return nil, err
		}
		return appInstance.InvoiceService.MarkPaid(ctx, appInstance.Caller, id, method, paidDate)
	}),
}

var invoicesCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel an invoice and release its time entries",
	Args:  cobra.ExactArgs(1),
	RunE: invoiceTransition("cancel", func(ctx context.Context, id int64, _ *cobra.Command) (*domain.Invoice, error) {
		return appInstance.InvoiceService.Cancel(ctx, appInstance.Caller, id)
	}),
}

var invoicesRecalculateCmd = &cobra.Command{
	Use:   "recalculate [id]",
	Short: "Recompute totals and status",
	Args:  cobra.ExactArgs(1),
	RunE: invoiceTransition("recalculate", func(ctx context.Context, id int64, _ *cobra.Command) (*domain.Invoice, error) {
		return appInstance.InvoiceService.Recalculate(ctx, appInstance.Caller, id)
	}),
}

var invoicesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an invoice that was never sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}

		if err := appInstance.InvoiceService.Delete(ctx, appInstance.Caller, id); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}

		fmt.Printf("✓ Invoice #%d deleted\n", id)
		return nil
	},
}

var invoicesOverdueCmd = &cobra.Command{
	Use:   "check-overdue",
	Short: "Mark past-due invoices as overdue",
	RunE: func(cmd *cobra.Command, args []string) error {
		overdue, err := appInstance.InvoiceService.CheckOverdue(context.Background(), appInstance.Caller)
		if err != nil {
			return fmt.Errorf("failed to check overdue invoices: %w", err)
		}

		if len(overdue) == 0 {
			fmt.Println("No newly overdue invoices")
			return nil
		}
		for _, invoice := range overdue {
			fmt.Printf("! %s is overdue: %s due since %s\n",
				invoice.InvoiceNumber, domain.FormatAmount(invoice.AmountDue, invoice.CurrencyOrDefault()), formatOptionalDate(invoice.DueDate))
		}
		return nil
	},
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show [id_or_number]",
	Short: "Show invoice details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var invoice *domain.Invoice
		var err error
		if id, parseErr := strconv.ParseInt(args[0], 10, 64); parseErr == nil {
			invoice, err = appInstance.InvoiceService.GetInvoice(ctx, appInstance.Caller, id)
		} else {
			invoice, err = appInstance.InvoiceService.GetInvoiceByNumber(ctx, appInstance.Caller, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		projectName := fmt.Sprintf("Project #%d", invoice.ProjectID)
		if project, err := appInstance.ProjectRepo.GetByID(ctx, invoice.ProjectID); err == nil {
			projectName = project.Name
		}

		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Invoice: %s (ID: %d)\n", invoice.InvoiceNumber, invoice.ID)
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Project: %s\n", projectName)
		fmt.Printf("Issued: %s  Due: %s\n", invoice.IssueDate.Format("2006-01-02"), formatOptionalDate(invoice.DueDate))
		fmt.Printf("Status: %s", invoice.Status)
		if invoice.IsOverdue(appInstance.Clock.Now()) {
			fmt.Print(" (overdue)")
		}
		fmt.Println()
		if invoice.SentDate != nil {
			fmt.Printf("Sent: %s\n", invoice.SentDate.Format("2006-01-02"))
		}
		if invoice.PaidDate != nil {
			fmt.Printf("Paid: %s\n", invoice.PaidDate.Format("2006-01-02"))
		}
		fmt.Println()

		if len(invoice.LineItems) > 0 {
			fmt.Println("Line Items:")
			fmt.Println(strings.Repeat("-", 80))
			fmt.Printf("%-5s %-42s %8s %10s %10s\n", "ID", "Description", "Qty", "Price", "Amount")
			fmt.Println(strings.Repeat("-", 80))

			for _, item := range invoice.LineItems {
				fmt.Printf("%-5d %-42s %8s %10s %10s\n",
					item.ID,
					truncate(item.Description, 42),
					item.Quantity.StringFixed(2),
					domain.Money(item.UnitPrice),
					domain.Money(item.Amount),
				)
			}
			fmt.Println(strings.Repeat("-", 80))
		}

		if len(invoice.Payments) > 0 {
			fmt.Println("Payments:")
			for _, p := range invoice.Payments {
				fmt.Printf("  #%-4d %s %10s %-14s %-10s %s\n",
					p.ID, p.Date.Format("2006-01-02"), domain.Money(p.Amount), p.Method, p.Status, p.TransactionRef)
			}
		}

		fmt.Println()
		printTotals(invoice)
		fmt.Println(strings.Repeat("=", 80))

		return nil
	},
}

func init() {
	invoicesCmd.AddCommand(invoicesListCmd)
	invoicesCmd.AddCommand(invoicesCreateCmd)
	invoicesCmd.AddCommand(invoicesAddItemCmd)
	invoicesCmd.AddCommand(invoicesUpdateItemCmd)
	invoicesCmd.AddCommand(invoicesRemoveItemCmd)
	invoicesCmd.AddCommand(invoicesAddEntriesCmd)
	invoicesCmd.AddCommand(invoicesTaxCmd)
	invoicesCmd.AddCommand(invoicesSendCmd)
	invoicesCmd.AddCommand(invoicesMarkViewedCmd)
	invoicesCmd.AddCommand(invoicesMarkPaidCmd)
	invoicesCmd.AddCommand(invoicesCancelCmd)
	invoicesCmd.AddCommand(invoicesRecalculateCmd)
	invoicesCmd.AddCommand(invoicesDeleteCmd)
	invoicesCmd.AddCommand(invoicesOverdueCmd)
	invoicesCmd.AddCommand(invoicesShowCmd)

	// List flags
	invoicesListCmd.Flags().String("project", "", "Filter by project ID or name")
	invoicesListCmd.Flags().String("status", "", "Filter by status (draft, sent, viewed, overdue, paid, cancelled)")

	// Create flags
	invoicesCreateCmd.Flags().String("issue", "", "Issue date (defaults to today)")
	invoicesCreateCmd.Flags().Int("due-days", 0, "Days until due (defaults to config)")
	invoicesCreateCmd.Flags().String("tax", "", "Tax rate in percent (defaults to config)")
	invoicesCreateCmd.Flags().String("discount", "", "Fixed discount amount")
	invoicesCreateCmd.Flags().String("currency", "", "3-letter currency code (defaults to config)")
	invoicesCreateCmd.Flags().String("notes", "", "Invoice notes")

	// Update item flags
	invoicesUpdateItemCmd.Flags().String("description", "", "New description")
	invoicesUpdateItemCmd.Flags().String("quantity", "", "New quantity")
	invoicesUpdateItemCmd.Flags().String("price", "", "New unit price")

	// Adjust flags
	invoicesTaxCmd.Flags().String("tax", "", "Tax rate in percent, empty for none")
	invoicesTaxCmd.Flags().String("discount", "", "Fixed discount amount")

	// Mark paid flags
	invoicesMarkPaidCmd.Flags().String("date", "", "Payment date (defaults to today)")
	invoicesMarkPaidCmd.Flags().String("method", string(domain.PaymentMethodBankTransfer), "Payment method")
}

// invoiceTransition builds a RunE that applies fn to the invoice named by the first argument
func invoiceTransition(verb string, fn func(context.Context, int64, *cobra.Command) (*domain.Invoice, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}

		invoice, err := fn(context.Background(), id, cmd)
		if err != nil {
			return fmt.Errorf("failed to %s invoice: %w", verb, err)
		}

		fmt.Printf("✓ Invoice %s is %s\n", invoice.InvoiceNumber, invoice.Status)
		printTotals(invoice)
		return nil
	}
}

func printTotals(invoice *domain.Invoice) {
	cur := invoice.CurrencyOrDefault()
	fmt.Printf("  Subtotal: %s\n", domain.FormatAmount(invoice.Subtotal, cur))
	if invoice.TaxRate.Valid {
		fmt.Printf("  Tax (%s%%): %s\n", invoice.TaxRate.Decimal.String(), domain.FormatAmount(invoice.TaxAmount, cur))
	}
	if !invoice.Discount.IsZero() {
		fmt.Printf("  Discount: -%s\n", domain.FormatAmount(invoice.Discount, cur))
	}
	fmt.Printf("  Total: %s\n", domain.FormatAmount(invoice.Amount, cur))
	fmt.Printf("  Paid: %s  Due: %s\n", domain.FormatAmount(invoice.AmountPaid, cur), domain.FormatAmount(invoice.AmountDue, cur))
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID '%s': %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
