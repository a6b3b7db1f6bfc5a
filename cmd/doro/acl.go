package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dorepo/doro"
)

var (
	aclReaders []string
	aclWriters []string
	aclDryRun  bool
)

var aclCmd = &cobra.Command{
	Use:   "acl <handle>",
	Short: "Show or replace an object's access control list",
	Long: `With no flags, acl prints the object's readers and writers with
the principal names resolved from their handles. With --reader or
--writer flags it replaces the whole ACL with the named principals.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		o, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if len(aclReaders) == 0 && len(aclWriters) == 0 {
			return printACL(s, o)
		}
		updated, err := o.UpdateACL(aclReaders, aclWriters, aclDryRun)
		if err != nil {
			return err
		}
		return printACL(s, updated)
	},
}

func printACL(s *doro.Session, o *doro.Object) error {
	fmt.Println("readers:")
	for _, id := range o.ACL.Readers {
		name, err := s.ResolveID(id)
		if err != nil {
			return err
		}
		fmt.Printf("  %s (%s)\n", name, id)
	}
	fmt.Println("writers:")
	for _, id := range o.ACL.Writers {
		name, err := s.ResolveID(id)
		if err != nil {
			return err
		}
		fmt.Printf("  %s (%s)\n", name, id)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(aclCmd)
	f := aclCmd.Flags()
	f.StringArrayVar(&aclReaders, "reader", nil, "principal name allowed to read (repeatable)")
	f.StringArrayVar(&aclWriters, "writer", nil, "principal name allowed to write (repeatable)")
	f.BoolVar(&aclDryRun, "dry-run", false, "validate without saving")
}
