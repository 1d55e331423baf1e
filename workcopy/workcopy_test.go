/*
 * Copyright (c) 2021 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

package workcopy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/profile/History", []byte("0123456789"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/profile/History-wal", []byte("wal"), 0644))

	tests := []struct {
		name      string
		maxMemory int64
		rolled    bool
	}{
		{"in memory", 1024, false},
		{"rolled over", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Stage(fsys, "/profile/History", t.TempDir(), tt.maxMemory)
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tt.rolled, c.file != nil)
			assert.Equal(t, int64(10), c.Size())
			b, err := c.Bytes()
			require.NoError(t, err)
			assert.Equal(t, "0123456789", string(b))
		})
	}
}

func TestCopy_PathAndSidecars(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/profile/History", []byte("db"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/profile/History-wal", []byte("wal"), 0644))

	c, err := Stage(fsys, "/profile/History", t.TempDir(), 0)
	require.NoError(t, err)

	p, err := c.Path()
	require.NoError(t, err)
	assert.Equal(t, "History", filepath.Base(p))
	require.NoError(t, c.StageSidecars(fsys, "-wal", "-journal"))

	wal, err := os.ReadFile(p + "-wal")
	require.NoError(t, err)
	assert.Equal(t, "wal", string(wal))
	_, err = os.Stat(p + "-journal")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Close())
	_, err = os.Stat(filepath.Dir(p))
	assert.True(t, os.IsNotExist(err))
}

func TestStage_Missing(t *testing.T) {
	_, err := Stage(afero.NewMemMapFs(), "/nope", t.TempDir(), 0)
	assert.Error(t, err)
}

func TestStage_RolloverFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	name := "/profile/" + strings.Repeat("a", 300)
	require.NoError(t, afero.WriteFile(fsys, name, []byte("0123456789"), 0644))

	tempDir := t.TempDir()
	_, err := Stage(fsys, name, tempDir, 4)
	require.Error(t, err)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
