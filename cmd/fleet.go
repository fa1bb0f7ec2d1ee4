package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsdispatch/config"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the vehicles and hospitals of the configured scenario",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc, err := cfg.Fleet.LoadScenario()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintf(w, "VEHICLE\tBASE\n"); err != nil {
		return err
	}
	for _, v := range sc.Vehicles {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", v.ID, v.Base); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nHOSPITAL\tLOCATION\tNAME\n"); err != nil {
		return err
	}
	for _, h := range sc.Hospitals {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", h.ID, h.Location, h.Name); err != nil {
			return err
		}
	}
	return w.Flush()
}
