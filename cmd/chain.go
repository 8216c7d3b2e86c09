// File: cmd/chain.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
)

func newChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain [interface...]",
		Short: "Print the prototype chain of element interfaces",
		Long:  "Prints each interface followed by its ancestors, leaf first. Without arguments every registered interface is listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := jsbind.DefaultRegistry(nil)
			if err != nil {
				return fmt.Errorf("failed to build prototype registry: %w", err)
			}
			names := args
			if len(names) == 0 {
				names = registry.Interfaces()
			}
			for _, name := range names {
				chain, err := registry.Chain(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(chain, " -> "))
			}
			return nil
		},
	}
}
