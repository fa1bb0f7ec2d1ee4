package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/emsdispatch/api"
	"github.com/kilianp07/emsdispatch/config"
)

var (
	dispatchURL string
	dispatchLat float64
	dispatchLon float64
	dispatchID  string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Report a test incident to a running instance",
	RunE:  dispatchIncident,
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchURL, "api", "http://localhost:8080", "base URL of the running API")
	dispatchCmd.Flags().Float64Var(&dispatchLat, "lat", 0, "incident latitude")
	dispatchCmd.Flags().Float64Var(&dispatchLon, "lon", 0, "incident longitude")
	dispatchCmd.Flags().StringVar(&dispatchID, "id", "", "incident id (random when empty)")
	_ = dispatchCmd.MarkFlagRequired("lat")
	_ = dispatchCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchIncident(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	body, err := json.Marshal(api.CreateIncidentRequest{ID: dispatchID, Lat: &dispatchLat, Lon: &dispatchLon})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dispatchURL+"/api/incidents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.API.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("api returned %s: %s", resp.Status, bytes.TrimSpace(out))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(out)))
	return err
}
