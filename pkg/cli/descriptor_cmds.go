package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/publish"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a descriptor's structure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, source, err := a.loadDescriptor(args)
			if err != nil {
				return err
			}
			for _, w := range descriptor.Lint(&d) {
				fmt.Fprintf(a.out, "warning: %s\n", w)
			}
			fmt.Fprintf(a.out, "OK: %s (%d branches, %d plugins)\n", source, len(d.Branches), len(d.Plugins))
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var formatName, outPath, publishName string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Serialize a descriptor for the release orchestrator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := descriptor.ParseFormat(formatName)
			if err != nil {
				return err
			}
			d, source, err := a.loadDescriptor(args)
			if err != nil {
				return err
			}
			data, err := a.encode(&d, format)
			if err != nil {
				return err
			}
			a.logger.Debug("descriptor exported", "source", source, "format", format, "bytes", len(data))

			if publishName != "" {
				pub, err := publish.FromConfig(a.cfg.ObjectStore)
				if err != nil {
					return err
				}
				if err := pub.EnsureBucket(cmd.Context()); err != nil {
					return err
				}
				key, err := pub.Publish(cmd.Context(), publishName, format, data)
				if err != nil {
					return err
				}
				a.metrics.Counter(observability.MetricPublishes).Inc()
				a.logger.Info("descriptor published", "bucket", a.cfg.ObjectStore.Bucket, "key", key)
			}

			if outPath == "" || outPath == "-" {
				_, err = a.out.Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			a.logger.Info("descriptor written", "path", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "js", "output format: js, json or yaml")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&publishName, "publish", "", "also upload to object storage under this name")
	return cmd
}

func (a *app) encode(d *models.Descriptor, format descriptor.Format) ([]byte, error) {
	form, err := descriptor.Export(d)
	if err != nil {
		a.metrics.Counter(observability.MetricExportFailures).Inc()
		return nil, err
	}
	data, err := descriptor.Encode(form, format)
	if err != nil {
		a.metrics.Counter(observability.MetricExportFailures).Inc()
		return nil, err
	}
	a.metrics.Counter(observability.MetricExports).Inc()
	return data, nil
}

func newRegisterCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register NAME [file]",
		Short: "Store a descriptor revision under a name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, source, err := a.loadDescriptor(args[1:])
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rec := &models.DescriptorRecord{Name: args[0], Descriptor: d}
			if err := st.PutDescriptor(rec); err != nil {
				return err
			}
			a.logger.Info("descriptor registered", "name", rec.Name, "revision", rec.Revision, "source", source)
			fmt.Fprintf(a.out, "%s revision %d (%s)\n", rec.Name, rec.Revision, rec.UID)
			return nil
		},
	}
}

func newPluginsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugin identifiers descriptors may reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range descriptor.Plugins() {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}
