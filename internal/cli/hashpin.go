package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msomdec/care-practice/internal/config"
	"github.com/msomdec/care-practice/internal/service"
)

var hashPinCost int

var hashPinCmd = &cobra.Command{
	Use:   "hash-pin <pin>",
	Short: "Print a bcrypt hash for the instructor PIN",
	Long:  `Print a bcrypt hash suitable for INSTRUCTOR_PIN_HASH or auth.instructor_pin_hash.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashPinCost < 4 || hashPinCost > 14 {
			return fmt.Errorf("bcrypt cost must be between 4 and 14, got %d", hashPinCost)
		}
		hash, err := service.HashPIN(args[0], hashPinCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashPinCmd.Flags().IntVar(&hashPinCost, "cost", config.DefaultConfig().Auth.BcryptCost, "bcrypt cost")
}
