package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/priceloom/priceloom/internal/state"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage planning scenarios",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a scenario with default goals",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioAdd,
	}
	add.Flags().Bool("select", false, "select the new scenario")

	list := &cobra.Command{
		Use:   "list",
		Short: "List scenarios",
		Args:  cobra.NoArgs,
		RunE:  runScenarioList,
	}

	rm := &cobra.Command{
		Use:   "rm <scenario>",
		Short: "Delete a scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioRm,
	}

	sel := &cobra.Command{
		Use:   "select <scenario>",
		Short: "Make a scenario the active one",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenarioSelect,
	}

	quantity := &cobra.Command{
		Use:   "quantity <scenario> <product> <count>",
		Short: "Set how many of a product the scenario plans",
		Args:  cobra.ExactArgs(3),
		RunE:  runScenarioQuantity,
	}

	cmd.AddCommand(add, list, rm, sel, quantity)

	return cmd
}

func newGoalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage profitability goals",
	}

	set := &cobra.Command{
		Use:   "set <scenario>",
		Short: "Update a scenario's goals",
		Args:  cobra.ExactArgs(1),
		RunE:  runGoalsSet,
	}
	set.Flags().Float64("target-hours", 0, "weekly hours you want to work")
	set.Flags().Float64("max-hours", 0, "weekly hours you can work at most")
	set.Flags().Float64("target-profit", 0, "profit you aim for per timespan")
	set.Flags().Float64("min-profit", 0, "profit you need per timespan")
	set.Flags().Int("timespan-days", 0, "length of the planning timespan in days")

	cmd.AddCommand(set)

	return cmd
}

func runScenarioAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id := a.store.NewScenario()
	if err := a.store.SetScenarioName(id, args[0]); err != nil {
		return err
	}

	if selected, _ := cmd.Flags().GetBool("select"); selected {
		a.store.SelectScenario(id)
	}

	fmt.Println(id)

	return nil
}

func runScenarioList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.awaitSync() {
		statusf("Showing cached state.\n")
	}

	scenarios := a.store.Scenarios()
	selected := a.store.SelectedScenarioID()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(scenarios)
	}

	rows := make([][]string, 0, len(scenarios))
	for _, sc := range scenarios {
		mark := ""
		if sc.ID == selected {
			mark = "*"
		}

		rows = append(rows, []string{
			mark,
			sc.ID,
			sc.Name,
			fmt.Sprintf("%.0f/%.0f", sc.Goals.Time.TargetHours, sc.Goals.Time.MaxHours),
			formatMoney(sc.Goals.Profit.Target),
			formatMoney(sc.Goals.Profit.Min),
			strconv.Itoa(sc.Goals.TimespanDays),
		})
	}

	printTable(os.Stdout,
		[]string{"", "ID", "NAME", "HOURS", "TARGET", "MIN", "DAYS"},
		rows)

	return nil
}

func runScenarioRm(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveScenario(a.store, args[0])
	if err != nil {
		return err
	}

	a.store.DeleteScenario(id)

	return nil
}

func runScenarioSelect(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveScenario(a.store, args[0])
	if err != nil {
		return err
	}

	a.store.SelectScenario(id)

	return nil
}

func runScenarioQuantity(_ *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("count %q is not an integer", args[2])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	scenarioID, err := resolveScenario(a.store, args[0])
	if err != nil {
		return err
	}

	productID, err := resolveProduct(a.store, args[1])
	if err != nil {
		return err
	}

	return a.store.SetQuantity(scenarioID, productID, count)
}

func runGoalsSet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.finish()

	a.awaitSync()

	id, err := resolveScenario(a.store, args[0])
	if err != nil {
		return err
	}

	for _, sc := range a.store.Scenarios() {
		if sc.ID != id {
			continue
		}

		updated := sc.Goals

		if cmd.Flags().Changed("target-hours") {
			updated.Time.TargetHours, _ = cmd.Flags().GetFloat64("target-hours")
		}
		if cmd.Flags().Changed("max-hours") {
			updated.Time.MaxHours, _ = cmd.Flags().GetFloat64("max-hours")
		}
		if cmd.Flags().Changed("target-profit") {
			updated.Profit.Target, _ = cmd.Flags().GetFloat64("target-profit")
		}
		if cmd.Flags().Changed("min-profit") {
			updated.Profit.Min, _ = cmd.Flags().GetFloat64("min-profit")
		}
		if cmd.Flags().Changed("timespan-days") {
			updated.TimespanDays, _ = cmd.Flags().GetInt("timespan-days")
		}

		return a.store.SetGoals(id, updated)
	}

	return fmt.Errorf("no scenario matching %q", args[0])
}

// resolveScenario accepts either a scenario ID or a unique scenario name.
func resolveScenario(store *state.Store, key string) (string, error) {
	var byName []string

	for _, sc := range store.Scenarios() {
		if sc.ID == key {
			return key, nil
		}

		if sc.Name == key {
			byName = append(byName, sc.ID)
		}
	}

	switch len(byName) {
	case 1:
		return byName[0], nil
	case 0:
		return "", fmt.Errorf("no scenario matching %q", key)
	default:
		return "", fmt.Errorf("scenario name %q is ambiguous, use the ID", key)
	}
}
