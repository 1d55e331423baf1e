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

// Package browserartifacts implements the browserartifacts command line tool.
//     extract    Extract browser artifacts into a forensicstore
//     discover   List the browser files below a directory
//     timestamp  Convert raw browser timestamps
//     element    Read the elements of a forensicstore (get, select, all, search)
//     validate   Validate a forensicstore
//
// Usage
//
// Extract all browser artifacts of a mounted image
//     browserartifacts extract --archive -o case.forensicstore /mnt/image/Users
// Query the result
//     browserartifacts element select browser-artifact -w url=%example.com% case.forensicstore
// Decode a WebKit timestamp
//     browserartifacts timestamp chromium 13261754096000000
package main

import (
	"os"

	"github.com/forensicanalysis/browserartifacts/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
