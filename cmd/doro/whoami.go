package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who the configured credentials authenticate as",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if s.Username == "" {
			fmt.Println("anonymous")
			return nil
		}
		info, err := s.Introspect()
		if err != nil {
			return err
		}
		fmt.Printf("username: %s\n", info.Username)
		fmt.Printf("active:   %v\n", info.Active)
		fmt.Printf("prefix:   %s\n", s.Prefix)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
