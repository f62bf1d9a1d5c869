package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/storefront/internal/domain"
	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/fjod/go_cart/storefront/internal/service"
)

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in so the cart can be checked out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				identity, err := scope.Auth.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", identity.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in identity; the cart is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				scope.Auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Open a payment session and print the payment page url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				handoff, err := scope.Checkout.Initiate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s\nContinue to payment: %s\n", handoff.SessionID, handoff.RedirectURL)
				return nil
			})
		},
	}
}

func completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete [return-url]",
		Short: "Verify the payment from the url the payment page returned to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				outcome := scope.Reconciler.ReconcileURL(ctx, args[0])
				printOutcome(cmd.OutOrStdout(), outcome)
				if outcome.Status != domain.ReconcileStatusVerified {
					return pkgerrors.New(pkgerrors.CodePaymentNotVerified, outcome.Message)
				}
				return nil
			})
		},
	}
}

func ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the orders placed by the signed-in shopper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				orders, err := scope.Orders(ctx)
				if err != nil {
					return err
				}
				printOrders(cmd.OutOrStdout(), orders)
				return nil
			})
		},
	}
}

func printOrders(out io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders yet.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tCAR\tQTY\tTOTAL\tPAYMENT\tPLACED")
	for _, order := range orders {
		car := order.Title
		if car == "" {
			car = order.CarID
		}
		placed := "-"
		if !order.CreatedAt.IsZero() {
			placed = order.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", order.ID, car, order.Quantity, order.TotalPrice.StringFixed(2), order.PaymentStatus, placed)
	}
	_ = tw.Flush()
}

func printOutcome(out io.Writer, outcome domain.ReconcileOutcome) {
	switch outcome.Status {
	case domain.ReconcileStatusVerified:
		fmt.Fprintln(out, "Payment successful. Your cart has been cleared.")
		for _, order := range outcome.Orders {
			fmt.Fprintf(out, "  order %s: %d car(s), %s\n", order.ID, order.Quantity, order.TotalPrice.StringFixed(2))
		}
		if outcome.Warning != "" {
			fmt.Fprintf(out, "Warning: %s\n", outcome.Warning)
		}
	default:
		fmt.Fprintf(out, "Payment failed: %s\n", outcome.Message)
	}
	for _, action := range outcome.Actions {
		fmt.Fprintf(out, "  %s -> %s\n", action.Label, action.Path)
	}
}
