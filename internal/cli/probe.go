// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tinychat/internal/detect"
)

// errUnsupported is returned by probe when the hard requirement fails.
var errUnsupported = errors.New("environment unsupported")

func newProbeCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the backend and machine can run the model",
		Long: `Runs the compatibility probe used at start-up: the backend must be
reachable (or startable), and the accelerator, device memory and model fit
are reported as advisories. Exits non-zero when the environment is
unsupported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := newBackend(a.cfg, a.logger)
			if err != nil {
				return err
			}
			report := newProber(a.cfg, be, a.logger).Probe(cmd.Context())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(out, be.name, a.cfg.Model.Name, report)
			}
			if !report.Supported {
				return errUnsupported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, runtime, model string, r detect.Report) {
	status := "supported"
	if !r.Supported {
		status = "UNSUPPORTED"
	}
	fmt.Fprintf(w, "Environment: %s\n", status)
	fmt.Fprintf(w, "Backend:     %s\n", runtime)
	fmt.Fprintf(w, "Model:       %s\n", model)
	if r.GPU != nil {
		fmt.Fprintf(w, "Accelerator: %s\n", r.GPU.String())
	}
	if r.MemoryGB > 0 {
		fmt.Fprintf(w, "Memory:      %d GB\n", r.MemoryGB)
	} else {
		fmt.Fprintln(w, "Memory:      unknown")
	}
	if len(r.Warnings) == 0 {
		return
	}
	fmt.Fprintln(w, "\nWarnings:")
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  - %s\n", warn)
	}
}
