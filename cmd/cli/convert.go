package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input.pcd|.bin> <output.pcd|.bin>",
		Short: "convert a point cloud between PCD and KITTI binary formats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCloud32(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if err := saveCloud32(args[1], c); err != nil {
				return fmt.Errorf("writing %s: %w", args[1], err)
			}
			fmt.Printf("converted %d points: %s -> %s\n", c.Len(), args[0], args[1])
			return nil
		},
	}
	return cmd
}
