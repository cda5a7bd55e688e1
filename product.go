package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/priceloom/priceloom/internal/model"
	"github.com/priceloom/priceloom/internal/state"
)

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a product",
		Args:  cobra.ExactArgs(1),
		RunE:  runProductAdd,
	}
	add.Flags().Float64("price", 0, "selling price")
	add.Flags().String("url", "", "product page URL")
	add.Flags().String("description", "", "product description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products with profitability metrics",
		Args:  cobra.NoArgs,
		RunE:  runProductList,
	}

	rm := &cobra.Command{
		Use:   "rm <product>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE:  runProductRm,
	}

	setPrice := &cobra.Command{
		Use:   "set-price <product> <price>",
		Short: "Change a product's selling price",
		Args:  cobra.ExactArgs(2),
		RunE:  runProductSetPrice,
	}

	cmd.AddCommand(add, list, rm, setPrice)

	return cmd
}

func newExpenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Manage per-product expense lines",
	}

	add := &cobra.Command{
		Use:   "add <product> <name> <amount>",
		Short: "Add an expense line",
		Args:  cobra.ExactArgs(3),
		RunE:  runExpenseAdd,
	}

	rm := &cobra.Command{
		Use:   "rm <product> <expense-id>",
		Short: "Remove an expense line",
		Args:  cobra.ExactArgs(2),
		RunE:  runExpenseRm,
	}

	cmd.AddCommand(add, rm)

	return cmd
}

func newTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "Manage per-product labor lines",
	}

	add := &cobra.Command{
		Use:   "add <product> <name> <minutes>",
		Short: "Add a labor line",
		Args:  cobra.ExactArgs(3),
		RunE:  runTimeAdd,
	}
	add.Flags().Int("rating", 0, "how much you enjoy this work (0-3)")

	rm := &cobra.Command{
		Use:   "rm <product> <time-id>",
		Short: "Remove a labor line",
		Args:  cobra.ExactArgs(2),
		RunE:  runTimeRm,
	}

	cmd.AddCommand(add, rm)

	return cmd
}

func runProductAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id := a.store.NewProduct()
	if err := a.store.SetProductName(id, args[0]); err != nil {
		return err
	}

	if price, _ := cmd.Flags().GetFloat64("price"); price != 0 {
		if err := a.store.SetPrice(id, price); err != nil {
			return err
		}
	}

	if url, _ := cmd.Flags().GetString("url"); url != "" {
		if err := a.store.SetProductURL(id, url); err != nil {
			return err
		}
	}

	if desc, _ := cmd.Flags().GetString("description"); desc != "" {
		if err := a.store.SetProductDescription(id, desc); err != nil {
			return err
		}
	}

	fmt.Println(id)

	return nil
}

func runProductList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.awaitSync() {
		statusf("Showing cached state.\n")
	}

	products := a.store.Products()
	metrics := a.store.Metrics()

	if flagJSON {
		type row struct {
			model.Product
			Metrics any `json:"metrics"`
		}

		out := make([]row, 0, len(products))
		for _, p := range products {
			out = append(out, row{Product: p, Metrics: metrics[p.ID]})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	rows := make([][]string, 0, len(products))
	for _, p := range products {
		m := metrics[p.ID]
		rows = append(rows, []string{
			p.ID,
			p.Name,
			formatMoney(p.Price),
			formatMoney(m.Expenses),
			formatHours(m.Time),
			formatMoney(m.Profit),
			formatMoney(m.HourlyRate) + "/h",
			formatRating(m.Profitability),
		})
	}

	printTable(os.Stdout,
		[]string{"ID", "NAME", "PRICE", "EXPENSES", "TIME", "PROFIT", "RATE", "PROFITABILITY"},
		rows)

	return nil
}

func runProductRm(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	a.store.DeleteProduct(id)

	return nil
}

func runProductSetPrice(_ *cobra.Command, args []string) error {
	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("price %q is not a number", args[1])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	return a.store.SetPrice(id, price)
}

func runExpenseAdd(_ *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("amount %q is not a number", args[2])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	lineID, err := a.store.AddExpense(id, args[1], amount)
	if err != nil {
		return err
	}

	fmt.Println(lineID)

	return nil
}

func runExpenseRm(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	return a.store.RemoveExpense(id, args[1])
}

func runTimeAdd(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("minutes %q is not a number", args[2])
	}

	rating, _ := cmd.Flags().GetInt("rating")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	lineID, err := a.store.AddTime(id, args[1], minutes, rating)
	if err != nil {
		return err
	}

	fmt.Println(lineID)

	return nil
}

func runTimeRm(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveProduct(a.store, args[0])
	if err != nil {
		return err
	}

	return a.store.RemoveTime(id, args[1])
}

// resolveProduct accepts either a product ID or a unique product name.
func resolveProduct(store *state.Store, key string) (string, error) {
	if _, err := store.Product(key); err == nil {
		return key, nil
	}

	var matches []string

	for _, p := range store.Products() {
		if p.Name == key {
			matches = append(matches, p.ID)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no product matching %q", key)
	default:
		return "", fmt.Errorf("product name %q is ambiguous, use the ID", key)
	}
}
