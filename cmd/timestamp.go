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

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/browserartifacts/record"
	"github.com/forensicanalysis/browserartifacts/timestamp"
)

func timestampCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timestamp <encoding or family> <value>...",
		Short: "Convert raw browser timestamps",
		Long: `Timestamp converts raw values to UTC. Encodings are unix-micros,
chromium-micros, filetime, coredata-seconds and unix-seconds; a browser
family selects its native encoding.`,
		Example: "  browserartifacts timestamp chromium 13261754096000000",
		Args:    cobra.MinimumNArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := parseEncoding(args[0])
			if err != nil {
				return err
			}
			normalizer, err := a.cfg.Normalizer()
			if err != nil {
				return err
			}
			for _, raw := range args[1:] {
				instant, err := normalizer.Convert(enc, raw)
				switch {
				case err != nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tunknown\t%s\n", raw, err)
				case !instant.Known():
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tunknown\n", raw)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", raw, int64(instant), instant)
				}
			}
			return nil
		},
	}
}

func parseEncoding(s string) (timestamp.Encoding, error) {
	if enc, err := timestamp.ParseEncoding(s); err == nil {
		return enc, nil
	}
	family, err := record.ParseFamily(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a time encoding nor a browser family", s)
	}
	return family.Encoding(), nil
}
