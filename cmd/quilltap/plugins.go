package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	plug "github.com/quilltap/quilltap/internal/plugin"
)

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile every enabled plugin with a declarative entry point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			a.scan()

			batch := a.compileAndVerify(cmd.Context())
			fmt.Printf("compiled %d, cached %d, failed %d\n", batch.Compiled, batch.Cached, batch.Failed)
			for name, msg := range a.plugins.LastErrors() {
				fmt.Fprintf(os.Stderr, "%s: %s\n", name, msg)
			}
			if batch.Failed > 0 {
				return fmt.Errorf("%d plugin(s) failed to compile", batch.Failed)
			}
			return nil
		},
	}
}

func pluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins",
	}
	cmd.AddCommand(pluginsListCmd(), pluginsValidateCmd())
	return cmd
}

func pluginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a := newApp(cfg)
			a.scan()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tCAPABILITIES\tPROVENANCE\tENABLED\tCOMPATIBLE")
			for _, lp := range a.plugins.All() {
				caps := make([]string, 0, len(lp.Capabilities))
				for _, c := range lp.Capabilities {
					caps = append(caps, string(c))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
					lp.Name(),
					lp.Manifest.Version,
					strings.Join(caps, ","),
					lp.Provenance,
					lp.Enabled,
					plug.IsCompatible(lp.Manifest, cfg.HostVersion),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if errs := a.plugins.LastErrors(); len(errs) > 0 {
				fmt.Fprintln(os.Stderr)
				for name, msg := range errs {
					fmt.Fprintf(os.Stderr, "error: %s: %s\n", name, msg)
				}
			}
			return nil
		},
	}
}

func pluginsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest.json>",
		Short: "Validate a plugin manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			m, err := plug.ValidateManifest(data)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s: ok\n", m.Name, m.Version)
			for _, warning := range plug.SecurityWarnings(m) {
				fmt.Printf("warning: %s\n", warning)
			}
			return nil
		},
	}
}
