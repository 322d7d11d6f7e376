package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/sensor"
	"github.com/spf13/cobra"
)

func newIdentifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Power the sensor, check its chip ID and power it off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPoweredSession(cmd, opts, func(ctx context.Context, sess *controller.Session) error {
				if err := sess.Identify(ctx); err != nil {
					return err
				}
				st := sess.State()
				fmt.Fprintf(cmd.OutOrStdout(), "IMX415 detected: %d lanes, pixel rate %d px/s\n", st.Lanes, st.PixelRate)
				return nil
			})
		},
	}
}

func newModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the sensor mode catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tFORMAT\tSIZE\tHTS\tVTS\tEXPOSURE\tFPS\tLINK FREQ")
			for i, m := range sensor.Modes() {
				fps := float64(m.Interval.Denominator) / float64(m.Interval.Numerator)
				fmt.Fprintf(tw, "%d\t0x%04x\t%dx%d\t%d\t%d\t%d\t%.2f\t%s\n",
					i, m.Format, m.Width, m.Height, m.HTS, m.VTS, m.Exposure, fps,
					sensor.LinkFrequencies[m.LinkFreqIndex])
			}
			return tw.Flush()
		},
	}
}

// withPoweredSession opens a session, powers the sensor and runs fn. The
// sensor is powered off and the bus released afterwards.
func withPoweredSession(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *controller.Session) error) error {
	d, err := opts.device(cmd.Flags())
	if err != nil {
		return err
	}
	sess, release, err := opts.openSession(d, nil)
	if err != nil {
		return err
	}
	defer release()

	ctx := cmd.Context()
	if err := sess.PowerOn(ctx); err != nil {
		return err
	}
	defer sess.Close(ctx)
	return fn(ctx, sess)
}
