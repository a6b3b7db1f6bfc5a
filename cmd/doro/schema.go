package main

import (
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage type schemas",
}

var schemaGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the JSON schema registered for a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		schema, err := s.GetSchema(args[0])
		if err != nil {
			return err
		}
		return printJSON(schema)
	},
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create <name> <schema-file>",
	Short: "Register a new type schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readContentFile(args[1])
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return s.CreateSchema(args[0], schema)
	},
}

var schemaUpdateCmd = &cobra.Command{
	Use:   "update <name> <schema-file>",
	Short: "Replace an existing type schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := readContentFile(args[1])
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return s.UpdateSchema(args[0], schema)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaGetCmd)
	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaUpdateCmd)
}
