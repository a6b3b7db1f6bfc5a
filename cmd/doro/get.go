package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	getPayload string
	getOut     string
)

var getCmd = &cobra.Command{
	Use:   "get <handle>",
	Short: "Fetch an object, or one of its payloads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if getPayload != "" {
			if getOut == "" || getOut == "-" {
				return s.ReadPayload(os.Stdout, args[0], getPayload)
			}
			f, err := os.Create(getOut)
			if err != nil {
				return err
			}
			err = s.ReadPayload(f, args[0], getPayload)
			cerr := f.Close()
			if err != nil {
				return err
			}
			return cerr
		}

		o, err := s.Get(args[0])
		if err != nil {
			return err
		}
		return printObject(o)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVar(&getPayload, "payload", "", "download this payload instead of the record")
	getCmd.Flags().StringVarP(&getOut, "out", "o", "", "write the payload here instead of stdout")
}
