// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

//go:build linux
// +build linux

package evict

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	creationTime = linuxCreationTime
}

// linuxCreationTime reads Stat_t.Ctim, the closest approximation to a
// creation time available without statx(STATX_BTIME): it is the last
// inode-metadata-change time, which for a cache file that is written
// once and never modified in place coincides with its creation.
func linuxCreationTime(fi fs.FileInfo) time.Time {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok {
		return fi.ModTime()
	}
	return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
}
