/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package cluster

import (
	"github.com/hashicorp/memberlist"

	"github.com/tochemey/distro/internal/codec"
)

// delegate implements memberlist Delegate. It only advertises the member
// record as node meta; distro data never travels over gossip.
type delegate struct {
	meta []byte
}

var _ memberlist.Delegate = (*delegate)(nil)

// newDelegate creates an instance of delegate
func newDelegate(self Member) (*delegate, error) {
	bytea, err := codec.Marshal(self)
	if err != nil {
		return nil, err
	}
	return &delegate{meta: bytea}, nil
}

// NodeMeta returns the encoded member record
func (d *delegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return nil
	}
	return d.meta
}

func (d *delegate) NotifyMsg([]byte) {}

func (d *delegate) GetBroadcasts(int, int) [][]byte {
	return nil
}

func (d *delegate) LocalState(bool) []byte {
	return nil
}

func (d *delegate) MergeRemoteState([]byte, bool) {}
