package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dorepo/doro"
)

var (
	updateContent       string
	updatePointer       string
	updateValue         string
	updateType          string
	updateDryRun        bool
	updatePayloads      []string
	updateDeletePayload string
)

var updateCmd = &cobra.Command{
	Use:   "update <handle>",
	Short: "Update an object's content, type, or payloads",
	Long: `Update fetches the object's current record and writes the requested
changes back. A --json-pointer update replaces one subtree with the
JSON given by --value; otherwise --content replaces the content
wholesale, or payload changes are applied with the content resent
unchanged.`,
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

		opts := doro.UpdateOptions{
			JSONPointer:     updatePointer,
			Type:            updateType,
			DryRun:          updateDryRun,
			PayloadToDelete: updateDeletePayload,
		}
		if updatePointer != "" {
			if updateValue == "" {
				return errors.New("--json-pointer needs --value with the new subtree as JSON")
			}
			var sub interface{}
			if err := json.Unmarshal([]byte(updateValue), &sub); err != nil {
				return errors.Wrap(err, "--value is not valid JSON")
			}
			opts.Content = sub
		} else if updateContent != "" {
			content, err := readContentFile(updateContent)
			if err != nil {
				return err
			}
			opts.Content = content
		}
		for _, raw := range updatePayloads {
			p, err := parsePayloadFlag(raw)
			if err != nil {
				return err
			}
			opts.Payloads = append(opts.Payloads, p)
		}

		o2, err := o.Update(opts)
		if err != nil {
			return err
		}
		return printObject(o2)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	f := updateCmd.Flags()
	f.StringVar(&updateContent, "content", "", "file with the replacement content ('-' for stdin)")
	f.StringVar(&updatePointer, "json-pointer", "", "update only the subtree at this JSON pointer")
	f.StringVar(&updateValue, "value", "", "new subtree as JSON, for --json-pointer")
	f.StringVar(&updateType, "type", "", "change the object's type name")
	f.BoolVar(&updateDryRun, "dry-run", false, "validate only, persist nothing")
	f.StringArrayVar(&updatePayloads, "payload", nil, "attach a payload, name=path[;mediatype] (repeatable)")
	f.StringVar(&updateDeletePayload, "delete-payload", "", "remove this payload")
}
