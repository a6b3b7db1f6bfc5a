package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deletePointer string

var deleteCmd = &cobra.Command{
	Use:   "delete <handle>",
	Short: "Delete an object, or one subtree of its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if deletePointer != "" {
			o, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if err := o.DeleteAt(deletePointer); err != nil {
				return err
			}
			fmt.Printf("deleted %s from %s\n", deletePointer, args[0])
			return nil
		}
		if err := s.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deletePointer, "json-pointer", "", "delete only the subtree at this JSON pointer")
}
