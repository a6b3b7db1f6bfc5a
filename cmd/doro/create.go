package main

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dorepo/doro"
)

var (
	createHandle       string
	createSuffix       string
	createRandomSuffix bool
	createDryRun       bool
	createPayloads     []string
	createReaders      []string
	createWriters      []string
)

var createCmd = &cobra.Command{
	Use:   "create <type> [content-file]",
	Short: "Create an object from a JSON content file (or stdin)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentFile := ""
		if len(args) == 2 {
			contentFile = args[1]
		}
		content, err := readContentFile(contentFile)
		if err != nil {
			return err
		}

		opts := &doro.CreateOptions{
			Handle: createHandle,
			Suffix: createSuffix,
			DryRun: createDryRun,
		}
		if createRandomSuffix {
			opts.Suffix = uuid.NewString()
		}
		for _, raw := range createPayloads {
			p, err := parsePayloadFlag(raw)
			if err != nil {
				return err
			}
			opts.Payloads = append(opts.Payloads, p)
		}
		if len(createReaders) > 0 || len(createWriters) > 0 {
			opts.ACL = &doro.ACLNames{Readers: createReaders, Writers: createWriters}
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		o, err := s.Create(content, args[0], opts)
		if err != nil {
			return err
		}
		return printObject(o)
	},
}

// parsePayloadFlag parses a --payload value of the form
// name=path[;mediatype].
func parsePayloadFlag(raw string) (doro.Payload, error) {
	eq := strings.Index(raw, "=")
	if eq <= 0 {
		return doro.Payload{}, &doro.UsageError{
			Reason: "payload must look like name=path[;mediatype], got " + raw}
	}
	name := raw[:eq]
	path := raw[eq+1:]
	mediaType := ""
	if semi := strings.LastIndex(path, ";"); semi >= 0 {
		mediaType = path[semi+1:]
		path = path[:semi]
	}
	return doro.NewPayload(name, path, mediaType)
}

func init() {
	rootCmd.AddCommand(createCmd)
	f := createCmd.Flags()
	f.StringVar(&createHandle, "handle", "", "explicit handle to assign (prefix must match the repository)")
	f.StringVar(&createSuffix, "suffix", "", "suffix to mint under the repository prefix")
	f.BoolVar(&createRandomSuffix, "random-suffix", false, "mint under a random suffix")
	f.BoolVar(&createDryRun, "dry-run", false, "validate only, persist nothing")
	f.StringArrayVar(&createPayloads, "payload", nil, "attach a payload, name=path[;mediatype] (repeatable)")
	f.StringArrayVar(&createReaders, "reader", nil, "reader name for the ACL (repeatable)")
	f.StringArrayVar(&createWriters, "writer", nil, "writer name for the ACL (repeatable)")
}
