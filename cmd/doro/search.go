package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dorepo/doro"
)

var (
	searchPage     int
	searchPageSize int
	searchSort     []string
	searchFilter   string
	searchIDsOnly  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the repository",
	Long: `Search passes the query string straight through to the server's
query grammar, for example '/name:item1' or 'type:"Document" AND
/status:draft'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := &doro.SearchOptions{
			PageNum:    searchPage,
			PageSize:   searchPageSize,
			SortFields: searchSort,
			JSONFilter: searchFilter,
		}
		if searchIDsOnly {
			handles, err := s.SearchIDs(args[0], opts)
			if err != nil {
				return err
			}
			for _, h := range handles {
				fmt.Println(h.ID)
			}
			return nil
		}
		objects, err := s.Search(args[0], opts)
		if err != nil {
			return err
		}
		for _, o := range objects {
			if err := printObject(o); err != nil {
				return err
			}
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count <query>",
	Short: "Count objects matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Count(args[0])
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(countCmd)
	f := searchCmd.Flags()
	f.IntVar(&searchPage, "page", 0, "zero-based page to return")
	f.IntVar(&searchPageSize, "page-size", 10, "results per page, negative for unlimited")
	f.StringArrayVar(&searchSort, "sort", nil, "sort field (repeatable)")
	f.StringVar(&searchFilter, "filter", "", "jsonFilter expression restricting returned fields")
	f.BoolVar(&searchIDsOnly, "ids", false, "print handles only")
}
