package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/spf13/cobra"
)

func newRegCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Read and write raw sensor registers",
	}
	cmd.AddCommand(newRegReadCommand(opts))
	cmd.AddCommand(newRegWriteCommand(opts))
	return cmd
}

func newRegReadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <addr> [width]",
		Short: "Read a register (width in bytes, default 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, width, err := parseRegArgs(args[0], args[1:])
			if err != nil {
				return err
			}
			return withPoweredSession(cmd, opts, func(ctx context.Context, sess *controller.Session) error {
				v, err := sess.ReadRegister(ctx, reg, width)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatReg(reg, width, v))
				return nil
			})
		},
	}
}

func newRegWriteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <addr> <value> [width]",
		Short: "Write a register (width in bytes, default 1)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, width, err := parseRegArgs(args[0], args[2:])
			if err != nil {
				return err
			}
			val, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return models.ErrBadRequest(fmt.Sprintf("invalid value %q", args[1]))
			}
			return withPoweredSession(cmd, opts, func(ctx context.Context, sess *controller.Session) error {
				if err := sess.WriteRegister(ctx, reg, width, uint32(val)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatReg(reg, width, uint32(val)))
				return nil
			})
		},
	}
}

// parseRegArgs parses a register address and an optional width. Both
// accept 0x and 0 prefixes.
func parseRegArgs(addr string, rest []string) (hardware.Register, int, error) {
	n, err := strconv.ParseUint(addr, 0, 16)
	if err != nil {
		return 0, 0, models.ErrBadRequest(fmt.Sprintf("invalid register address %q", addr))
	}
	width := hardware.Width8
	if len(rest) > 0 {
		w, err := strconv.Atoi(rest[0])
		if err != nil {
			return 0, 0, models.ErrBadRequest(fmt.Sprintf("invalid width %q", rest[0]))
		}
		width = w
	}
	return hardware.Register(n), width, nil
}

func formatReg(reg hardware.Register, width int, v uint32) string {
	return fmt.Sprintf("0x%04x = 0x%0*x", reg, width*2, v)
}
