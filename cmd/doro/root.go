package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dorepo/doro"
)

var (
	cfgFile  string
	verbose  bool
	insecure bool

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "doro",
	Short: "doro is a command line client for a digital object repository",
	Long: `doro talks to a digital object repository over its REST API:
create, fetch, update, search and delete objects, manage payloads,
access control lists, and schemas.

The repository host and credentials come from flags, DORO_* environment
variables, or a JSON config file (default ~/.doro.json) with the fields
"host", "username" and "password". With no username, doro works
anonymously and can only read what the server lets everyone read.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.doro.json)")
	pf.String("host", "", "repository base URL")
	pf.String("username", "", "user to authenticate as (anonymous when empty)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log every request")
	pf.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")

	logger.SetLevel(logrus.WarnLevel)
	logger.SetOutput(os.Stderr)
}

// initConfig resolves settings in the usual order: flags beat
// environment, environment beats the config file.
func initConfig() (*viper.Viper, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.SetConfigName(".doro")
		v.SetConfigType("json")
	}
	v.SetEnvPrefix("doro")
	v.AutomaticEnv()
	v.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	v.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing || cfgFile != "" {
			return nil, errors.Wrap(err, "cannot load config")
		}
	}
	return v, nil
}

// openSession builds a Session from the resolved configuration,
// prompting for the password when one is needed but not configured.
func openSession() (*doro.Session, error) {
	v, err := initConfig()
	if err != nil {
		return nil, err
	}
	host := v.GetString("host")
	if host == "" {
		return nil, errors.New("no repository host configured (use --host, DORO_HOST, or a config file)")
	}

	var opts []doro.Option
	if insecure {
		opts = append(opts, doro.SkipVerify())
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	opts = append(opts, doro.WithLogger(logger))

	user := v.GetString("username")
	if user == "" {
		return doro.OpenAnonymous(host, opts...)
	}
	pass := v.GetString("password")
	if pass == "" {
		pass, err = promptPassword(user)
		if err != nil {
			return nil, err
		}
	}
	return doro.Open(host, user, pass, opts...)
}

func promptPassword(user string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", user)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "cannot read password")
	}
	return string(raw), nil
}

// printJSON writes v to stdout, indented.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printObject(o *doro.Object) error {
	view := map[string]interface{}{
		"id":      o.Handle.ID,
		"type":    o.Type,
		"content": o.Content,
		"acl":     o.ACL,
	}
	if len(o.Payloads) > 0 {
		view["payloads"] = o.Payloads
	}
	return printJSON(view)
}

// readContentFile reads a JSON document from a file, or from stdin
// when path is "-" or empty.
func readContentFile(path string) (map[string]interface{}, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot read content")
	}
	var content map[string]interface{}
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, errors.Wrap(err, "content is not a JSON object")
	}
	return content, nil
}
