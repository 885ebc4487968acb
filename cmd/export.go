package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/export"
	"github.com/trustlens/trustlens/internal/model"
)

var (
	exportServer string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit history of a running server to SQLite",
	Long:  "Fetches the drift window and audit log from a running trustlens server and writes them to a SQLite file for offline analysis. The server itself keeps no on-disk state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		var audits []model.AuditRecord
		if err := fetchJSON(ctx, exportServer+"/api/history/audits", &audits); err != nil {
			return eris.Wrap(err, "fetch audit log")
		}

		var drift []model.DriftPoint
		if err := fetchJSON(ctx, exportServer+"/api/history/drift", &drift); err != nil {
			return eris.Wrap(err, "fetch drift window")
		}

		out := exportOut
		if out == "" {
			out = cfg.Export.Path
		}

		w, err := export.Open(out)
		if err != nil {
			return err
		}
		defer w.Close()

		if err := w.Migrate(ctx); err != nil {
			return err
		}
		if err := w.WriteAudits(ctx, audits); err != nil {
			return err
		}
		if err := w.WriteDrift(ctx, drift); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", out),
			zap.Int("audits", len(audits)),
			zap.Int("drift_points", len(drift)),
		)
		return nil
	},
}

func fetchJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eris.New(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url))
	}
	return eris.Wrap(json.NewDecoder(resp.Body).Decode(v), "decode response")
}

func init() {
	exportCmd.Flags().StringVar(&exportServer, "server", "http://localhost:8080", "base URL of the running trustlens server")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output SQLite path (default from config)")
	rootCmd.AddCommand(exportCmd)
}
