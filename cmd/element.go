// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/browserartifacts/store"
)

// withStore opens the store named by the last argument for fn.
func withStore(args []string, fn func(s *store.Store) ([]store.JSONElement, error)) ([]store.JSONElement, error) {
	s, err := store.Open(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return fn(s)
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <forensicstore>",
		Short: "Retrieve a single element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := withStore(args, func(s *store.Store) ([]store.JSONElement, error) {
				element, err := s.Get(args[0])
				return []store.JSONElement{element}, err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", elements[0])
			return nil
		},
	}
}

func selectCommand() *cobra.Command {
	var where []string
	selectCmd := &cobra.Command{
		Use:   "select <type> <forensicstore>",
		Short: "Retrieve all elements of a type",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			condition := map[string]string{"type": args[0]}
			for _, w := range where {
				parts := strings.SplitN(w, "=", 2) //nolint:gomnd
				if len(parts) != 2 {               //nolint:gomnd
					return fmt.Errorf("condition %q is not attribute=pattern", w)
				}
				condition[parts[0]] = parts[1]
			}
			elements, err := withStore(args, func(s *store.Store) ([]store.JSONElement, error) {
				return s.Select([]map[string]string{condition})
			})
			if err != nil {
				return err
			}
			return printElements(cmd.OutOrStdout(), elements)
		},
	}
	selectCmd.Flags().StringArrayVarP(&where, "where", "w", nil, "attribute=pattern condition, e.g. url=%example.com%")
	return selectCmd
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all <forensicstore>",
		Short: "Retrieve all elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := withStore(args, (*store.Store).All)
			if err != nil {
				return err
			}
			return printElements(cmd.OutOrStdout(), elements)
		},
	}
}

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query> <forensicstore>",
		Short: "Full text search over all elements",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := withStore(args, func(s *store.Store) ([]store.JSONElement, error) {
				return s.Search(args[0])
			})
			if err != nil {
				return err
			}
			return printElements(cmd.OutOrStdout(), elements)
		},
	}
}

func printElements(w io.Writer, elements []store.JSONElement) error {
	parts := make([]string, len(elements))
	for i, element := range elements {
		parts[i] = string(element)
	}
	_, err := fmt.Fprintf(w, "[%s]\n", strings.Join(parts, ","))
	return err
}
