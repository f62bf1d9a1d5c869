package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/storefront/internal/domain"
	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/fjod/go_cart/storefront/internal/service"
)

const maxLineQuantity = 99

func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the local cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				printCart(cmd.OutOrStdout(), scope.Cart.Snapshot())
				return nil
			})
		},
	}

	cmd.AddCommand(cartShowCmd())
	cmd.AddCommand(cartAddCmd())
	cmd.AddCommand(cartSetCmd())
	cmd.AddCommand(cartRemoveCmd())
	cmd.AddCommand(cartClearCmd())

	return cmd
}

func cartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart with its totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				printCart(cmd.OutOrStdout(), scope.Cart.Snapshot())
				return nil
			})
		},
	}
}

func cartAddCmd() *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "add [car-id]",
		Short: "Add a car to the cart at its current price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if quantity < 1 || quantity > maxLineQuantity {
				return invalidQuantity(quantity)
			}
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				state, err := scope.AddCar(ctx, args[0], quantity)
				if err != nil {
					return err
				}
				printCart(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&quantity, "qty", "q", 1, "quantity to add")

	return cmd
}

func cartSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [car-id] [quantity]",
		Short: "Set the quantity of a line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil || quantity < 0 || quantity > maxLineQuantity {
				return invalidQuantity(args[1])
			}
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				printCart(cmd.OutOrStdout(), scope.Cart.UpdateQuantity(ctx, args[0], quantity))
				return nil
			})
		},
	}
}

func cartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [car-id]",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				printCart(cmd.OutOrStdout(), scope.Cart.RemoveItem(ctx, args[0]))
				return nil
			})
		},
	}
}

func cartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(cmd, func(ctx context.Context, a *app, scope *service.Scope) error {
				printCart(cmd.OutOrStdout(), scope.Cart.Clear(ctx))
				return nil
			})
		},
	}
}

func invalidQuantity(value any) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be a number between 1 and %d, got %v", maxLineQuantity, value))
}

func printCart(out io.Writer, state domain.CartState) {
	if state.IsEmpty() {
		fmt.Fprintln(out, "Your cart is empty.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAR\tPRICE\tQTY\tSUBTOTAL")
	for _, item := range state.Items {
		name := item.Title
		if item.Brand != "" || item.Model != "" {
			name = fmt.Sprintf("%s (%s %s)", item.Title, item.Brand, item.Model)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", item.ID, name, item.Price.StringFixed(2), item.Quantity, item.Subtotal().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "\n%d item(s), total %s\n", state.TotalItems, state.TotalAmount.StringFixed(2))
}

// describeError is the text shown to the shopper for a failed command.
func describeError(err error) string {
	if pkgerrors.As(err) != nil {
		return pkgerrors.PublicMessage(err)
	}
	return err.Error()
}
